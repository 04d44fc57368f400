package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

const (
	HeaderMembers = "X-Gzip-Members"
	HeaderName    = "X-Gzip-Name"
)

var ErrOutputTooLarge = errors.New("server: decompressed output too large")

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "ok")
}

// decompressHandler decodes a gzip request body and returns the result. The
// body is fully decoded and verified before anything is sent.
func (s *Server) decompressHandler(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	defer body.Close()

	out := &cappedBuffer{max: s.cfg.MaxOutputSize}

	stats, err := s.decompressor.Decompress(body, out)
	if err != nil {
		var tooLarge *http.MaxBytesError

		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodySize))
		case errors.Is(err, ErrOutputTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("decompressed output exceeds %d bytes", s.cfg.MaxOutputSize))
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}

		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(out.buf.Len()))
	w.Header().Set(HeaderMembers, strconv.Itoa(len(stats.Members)))

	if len(stats.Members) > 0 && stats.Members[0].Header.Name != "" {
		w.Header().Set(HeaderName, stats.Members[0].Header.Name)
	}

	w.WriteHeader(http.StatusOK)

	if _, err := out.buf.WriteTo(w); err != nil {
		s.log.Debugf("unable to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	io.WriteString(w, msg+"\n")
}

// cappedBuffer refuses writes past max bytes.
type cappedBuffer struct {
	buf bytes.Buffer
	max int64
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if int64(c.buf.Len())+int64(len(p)) > c.max {
		return 0, ErrOutputTooLarge
	}

	return c.buf.Write(p)
}
