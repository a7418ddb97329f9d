package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pixnest/internal/domain"
	"pixnest/internal/repository"
	"pixnest/internal/repository/sqlite"
	"pixnest/internal/storage"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
)

// fakeImage returns size bytes starting with header.
func fakeImage(header []byte, size int) []byte {
	buf := make([]byte, size)
	copy(buf, header)
	return buf
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

type fakeGateway struct {
	mu       sync.Mutex
	prefix   string
	objects  map[string][]byte
	modified map[string]time.Time
	calls    int
	failNext int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{prefix: "pixnest", objects: make(map[string][]byte), modified: make(map[string]time.Time)}
}

func (g *fakeGateway) Upload(ctx context.Context, in storage.UploadInput) (*storage.Object, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.failNext > 0 {
		g.failNext--
		return nil, errors.New("connection reset by peer")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := strings.Join([]string{g.prefix, in.Folder, in.Name}, "/")
	g.objects[key] = data
	return &storage.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

func (g *fakeGateway) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, key)
	delete(g.modified, key)
	return nil
}

func (g *fakeGateway) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range g.objects {
		if strings.HasPrefix(key, prefix) {
			info := storage.ObjectInfo{Key: key, Size: int64(len(data))}
			if at, ok := g.modified[key]; ok {
				info.LastModified = &at
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (g *fakeGateway) Prefix() string { return g.prefix }

func (g *fakeGateway) uploadCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGateway) put(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[key] = []byte("x")
}

func (g *fakeGateway) putAt(key string, at time.Time) {
	g.put(key)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modified[key] = at
}

// failingLinks rejects every append.
type failingLinks struct {
	repository.PostLinkRepository
}

func (failingLinks) Append(context.Context, int64, int64) error {
	return errors.New("disk I/O error")
}

type fixture struct {
	db       *sql.DB
	users    repository.UserRepository
	posts    repository.PostRepository
	links    repository.PostLinkRepository
	sessions repository.SessionRepository
	store    *fakeGateway
	logger   *logrus.Logger

	credentials CredentialService
	media       MediaService
	postSvc     PostService
	profile     ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "pixnest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(db))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{
		db:       db,
		users:    sqlite.NewUserRepository(db),
		posts:    sqlite.NewPostRepository(db),
		links:    sqlite.NewPostLinkRepository(db),
		sessions: sqlite.NewSessionRepository(db),
		store:    newFakeGateway(),
		logger:   logger,
	}
	f.credentials = NewCredentialService(f.users, f.links, bcrypt.MinCost, logger)
	f.media = NewMediaService(f.store, MediaOptions{
		MaxBytes:       10 << 20,
		AllowedTypes:   []string{"image/jpeg", "image/png"},
		UploadAttempts: 2,
		RetryBackoff:   1,
		Logger:         logger,
	})
	f.postSvc = NewPostService(f.posts, f.links, logger)
	f.profile = NewProfileService(f.credentials, f.media, "avatars", logger)
	return f
}

func (f *fixture) register(t *testing.T, username, email string) int64 {
	t.Helper()
	id, err := f.credentials.Register(context.Background(), username, email, "", "correct-horse")
	require.NoError(t, err)
	return id
}

func (f *fixture) ingest(t *testing.T, data []byte) domain.StorageRef {
	t.Helper()
	r, err := f.media.Ingest(context.Background(), bytes.NewReader(data), int64(len(data)), "image/jpeg", "posts")
	require.NoError(t, err)
	return r
}
