package store

import (
	"bytes"
	"encoding/json"
	"path/filepath"

	cmtdb "github.com/cometbft/cometbft-db"
	"github.com/spf13/viper"

	"github.com/DOIDFoundation/tmrpc/flags"
	"github.com/DOIDFoundation/tmrpc/types"
	"github.com/cometbft/cometbft/libs/log"
)

// Fixture is a recorded outcome of one call.
type Fixture struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *types.RPCError `json:"error,omitempty"`
}

// FixtureStore keeps recorded call outcomes keyed by method and params.
type FixtureStore struct {
	log.Logger
	db cmtdb.DB
}

// NewFixtureStore opens the fixture database configured by flags.Fixtures_Dir
// and flags.Fixtures_Engine.
func NewFixtureStore(logger log.Logger) (*FixtureStore, error) {
	dir := viper.GetString(flags.Fixtures_Dir)
	if dir == "" {
		dir = filepath.Join(viper.GetString(flags.Home), "fixtures")
	}
	db, err := cmtdb.NewDB("fixtures", cmtdb.BackendType(viper.GetString(flags.Fixtures_Engine)), dir)
	if err != nil {
		return nil, err
	}
	return NewFixtureStoreWithDB(db, logger), nil
}

func NewFixtureStoreWithDB(db cmtdb.DB, logger log.Logger) *FixtureStore {
	return &FixtureStore{
		Logger: logger.With("module", "fixtures"),
		db:     db,
	}
}

func compactParams(params json.RawMessage) ([]byte, error) {
	if len(params) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, params); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFixture records f for method called with params. Empty params record
// the fallback fixture of the method.
func (s *FixtureStore) WriteFixture(method string, params json.RawMessage, f *Fixture) error {
	key, err := compactParams(params)
	if err != nil {
		return err
	}
	bz, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.db.SetSync(fixtureKey(method, key), bz)
}

// ReadFixture returns the fixture recorded for method and params, falling
// back to the one recorded without params. It returns nil if there is none.
func (s *FixtureStore) ReadFixture(method string, params json.RawMessage) *Fixture {
	key, err := compactParams(params)
	if err != nil {
		s.Logger.Error("Invalid params", "err", err, "method", method)
		return nil
	}
	if f := s.readFixture(fixtureKey(method, key)); f != nil || len(key) == 0 {
		return f
	}
	return s.readFixture(methodKey(method))
}

func (s *FixtureStore) readFixture(key []byte) *Fixture {
	bz, err := s.db.Get(key)
	if err != nil {
		s.Logger.Error("failed to read fixture", "err", err, "key", string(key))
		return nil
	}
	if len(bz) == 0 {
		return nil
	}
	f := new(Fixture)
	if err := json.Unmarshal(bz, f); err != nil {
		s.Logger.Error("Invalid fixture", "err", err, "key", string(key))
		return nil
	}
	return f
}

// Methods returns the recorded methods in order.
func (s *FixtureStore) Methods() ([]string, error) {
	iter, err := s.db.Iterator(fixturePrefix, prefixEnd(fixturePrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var methods []string
	for ; iter.Valid(); iter.Next() {
		key := iter.Key()[len(fixturePrefix):]
		i := bytes.IndexByte(key, separator)
		if i < 0 {
			continue
		}
		method := string(key[:i])
		if len(methods) == 0 || methods[len(methods)-1] != method {
			methods = append(methods, method)
		}
	}
	return methods, iter.Error()
}

// DeleteFixtures removes every fixture of method.
func (s *FixtureStore) DeleteFixtures(method string) error {
	prefix := methodKey(method)
	iter, err := s.db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return err
	}
	var keys [][]byte
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, append([]byte{}, iter.Key()...))
	}
	err = iter.Error()
	iter.Close()
	if err != nil {
		return err
	}

	b := s.db.NewBatch()
	defer b.Close()
	for _, key := range keys {
		if err := b.Delete(key); err != nil {
			return err
		}
	}
	return b.WriteSync()
}

func (s *FixtureStore) Close() error {
	return s.db.Close()
}
