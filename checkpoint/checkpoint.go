// Package checkpoint persists which source files have been decompressed so
// an interrupted batch can resume where it stopped.
package checkpoint

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dselans/ripgzip/checkpoint/types"
	"github.com/dselans/ripgzip/config"
	"github.com/dselans/ripgzip/validate"
)

type Store interface {
	// Load returns the stored checkpoint, or a fresh one if none exists.
	Load() (*types.Checkpoint, error)
	Save(cp *types.Checkpoint) error
	// Clear removes the stored checkpoint.
	Clear() error
	Close() error
}

// New returns the store selected by config.checkpoint_store.
func New(cfg *config.Config) (Store, error) {
	if cfg == nil || cfg.TOML == nil || cfg.TOML.Config == nil {
		return nil, errors.New("config cannot be nil")
	}

	switch cfg.TOML.Config.CheckpointStore {
	case config.CheckpointStoreFile:
		return NewFileStore(cfg.TOML.Config.CheckpointFile), nil
	case config.CheckpointStoreRedis:
		return NewRedisStore(cfg.TOML.Redis)
	case config.CheckpointStoreNone:
		return &NoopStore{}, nil
	}

	return nil, errors.Errorf("unsupported checkpoint store '%s'", cfg.TOML.Config.CheckpointStore)
}

func decode(data []byte) (*types.Checkpoint, error) {
	cp, err := types.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	if err := validate.Checkpoint(cp); err != nil {
		return nil, errors.Wrap(err, "invalid checkpoint")
	}

	return cp, nil
}

// FileStore keeps the checkpoint as a JSON file.
type FileStore struct {
	file string
	log  *logrus.Entry
}

func NewFileStore(file string) *FileStore {
	return &FileStore{
		file: file,
		log:  logrus.WithField("pkg", "checkpoint"),
	}
}

func (f *FileStore) Load() (*types.Checkpoint, error) {
	startedAt := time.Now()
	defer func() {
		f.log.Debugf("checkpoint loading took '%s'", time.Since(startedAt))
	}()

	data, err := os.ReadFile(f.file)
	if err != nil {
		if os.IsNotExist(err) {
			f.log.Debugf("checkpoint file '%s' does not exist, starting fresh", f.file)
			return types.New(), nil
		}

		return nil, errors.Wrap(err, "unable to read checkpoint file")
	}

	f.log.Debugf("loading checkpoint file '%s'", f.file)

	return decode(data)
}

// Save writes to a temp file in the same directory and renames it over the
// checkpoint so readers never see a partial file.
func (f *FileStore) Save(cp *types.Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.file), "."+filepath.Base(f.file)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "unable to create temp checkpoint file")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errors.Wrap(err, "unable to write checkpoint file")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to close checkpoint file")
	}

	if err := os.Rename(tmp.Name(), f.file); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to rename checkpoint file")
	}

	return nil
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.file); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "unable to remove checkpoint file")
	}

	return nil
}

func (f *FileStore) Close() error {
	return nil
}

// RedisStore keeps the checkpoint as JSON under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
	log    *logrus.Entry
}

func NewRedisStore(cfg *config.TOMLRedis) (*RedisStore, error) {
	if cfg == nil {
		return nil, errors.New("redis config cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "unable to connect to redis at '%s'", cfg.Address)
	}

	return newRedisStore(client, cfg.Key), nil
}

func newRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    key,
		log:    logrus.WithFields(logrus.Fields{"pkg": "checkpoint", "store": "redis"}),
	}
}

func (r *RedisStore) Load() (*types.Checkpoint, error) {
	data, err := r.client.Get(r.key).Bytes()
	if err == redis.Nil {
		r.log.Debugf("no checkpoint under key '%s', starting fresh", r.key)
		return types.New(), nil
	}

	if err != nil {
		return nil, errors.Wrap(err, "unable to read checkpoint from redis")
	}

	return decode(data)
}

func (r *RedisStore) Save(cp *types.Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	if err := r.client.Set(r.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "unable to write checkpoint to redis")
	}

	return nil
}

func (r *RedisStore) Clear() error {
	if err := r.client.Del(r.key).Err(); err != nil {
		return errors.Wrap(err, "unable to delete checkpoint from redis")
	}

	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// NoopStore never persists anything.
type NoopStore struct{}

func (n *NoopStore) Load() (*types.Checkpoint, error) { return types.New(), nil }

func (n *NoopStore) Save(*types.Checkpoint) error { return nil }

func (n *NoopStore) Clear() error { return nil }

func (n *NoopStore) Close() error { return nil }
