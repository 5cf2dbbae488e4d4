package filesystem

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gamemaker-server/core"
	"gamemaker-server/signedurl"

	"github.com/sirupsen/logrus"
)

// SignatureParam holds the hex HMAC-SHA256 of a signed download URL.
const SignatureParam = "X-Amz-Signature"

var (
	// ErrInvalidSignature reports a download URL whose signature does not match.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrLinkExpired reports a download URL whose validity window has ended.
	ErrLinkExpired = errors.New("link expired")
)

type fsStore struct {
	mu       sync.RWMutex
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewStore creates a new filesystem-based object store rooted at basePath.
// Signed URLs point at baseURL and are signed with secret.
func NewStore(basePath, baseURL, secret string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		secret:   []byte(secret),
		now:      time.Now,
	}, nil
}

// objectPath resolves bucket/key below basePath and refuses keys that
// would escape the bucket directory.
func (s *fsStore) objectPath(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q: %w", bucket, core.ErrRejected)
	}
	bucketPath, err := filepath.Abs(filepath.Join(s.basePath, bucket))
	if err != nil {
		return "", err
	}
	filePath, err := filepath.Abs(filepath.Join(bucketPath, filepath.FromSlash(key)))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(filePath, bucketPath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q: %w", key, core.ErrRejected)
	}
	return filePath, nil
}

func (s *fsStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	filePath, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key, "path": filePath})

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Object file not found")
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to open object file")
		return nil, err
	}
	return f, nil
}

func (s *fsStore) Put(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	filePath, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key, "path": filePath})

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Error("Failed to create object directory")
		return err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		log.WithError(err).Error("Failed to create temporary file")
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.WithError(err).Error("Failed to write object file")
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		log.WithError(err).Error("Failed to move object file into place")
		return err
	}

	log.WithField("data_length", len(content)).Info("Object stored successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, bucket, key string) error {
	filePath, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key, "path": filePath})

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Object file not found for deletion, considered successful.")
			return nil
		}
		log.WithError(err).Error("Failed to delete object file")
		return err
	}

	log.Info("Object deleted successfully")
	return nil
}

func (s *fsStore) PreSignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	if _, err := s.objectPath(bucket, key); err != nil {
		return "", err
	}
	query := signedurl.Params(s.now(), expires)
	query.Set(SignatureParam, s.sign(bucket, key, query))
	return fmt.Sprintf("%s/files/%s/%s?%s", s.baseURL, url.PathEscape(bucket), escapeKey(key), query.Encode()), nil
}

func (s *fsStore) Metadata(ctx context.Context, bucket, key string) (*core.ObjectInfo, error) {
	filePath, err := s.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}
	objectInfo := fileObjectInfo(key, info)
	return &objectInfo, nil
}

func (s *fsStore) ListObjects(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	bucketPath, err := filepath.Abs(filepath.Join(s.basePath, bucket))
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"bucket": bucket, "prefix": prefix})

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]core.ObjectInfo, 0)
	err = filepath.WalkDir(bucketPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == bucketPath {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(bucketPath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			log.WithError(err).Warnf("Failed to get file info for %s, skipping", key)
			return nil
		}
		infos = append(infos, fileObjectInfo(key, info))
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to list objects")
		return nil, err
	}

	log.Debugf("Listed %d objects", len(infos))
	return infos, nil
}

// Verify checks a download request against the signature and validity
// window embedded in its query.
func (s *fsStore) Verify(bucket, key string, query url.Values) error {
	given, err := hex.DecodeString(query.Get(SignatureParam))
	if err != nil || len(given) == 0 {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(s.sign(bucket, key, query))
	if !hmac.Equal(given, want) {
		return ErrInvalidSignature
	}

	expiresAt, ok := signedurl.ExpiresAt("?" + query.Encode())
	if !ok {
		return ErrInvalidSignature
	}
	if expiresAt.Before(s.now().UTC()) {
		return ErrLinkExpired
	}
	return nil
}

func (s *fsStore) sign(bucket, key string, query url.Values) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(bucket + "/" + key + "\n"))
	mac.Write([]byte(query.Get(signedurl.DateParam) + "\n"))
	mac.Write([]byte(query.Get(signedurl.ExpiresParam)))
	return hex.EncodeToString(mac.Sum(nil))
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func fileObjectInfo(key string, info fs.FileInfo) core.ObjectInfo {
	return core.ObjectInfo{
		Key:          key,
		Size:         info.Size(),
		ContentType:  mime.TypeByExtension(path.Ext(key)),
		ETag:         fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size()),
		LastModified: info.ModTime(),
	}
}

var _ core.ObjectStore = (*fsStore)(nil)
