// Package gridfs stores listing images in MongoDB GridFS.
package gridfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Kingl1tz/shoppal/internal/services/marketplace/blob"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultBucket is the GridFS bucket name used for listing images.
const DefaultBucket = "listing_images"

// Store keeps objects in one GridFS bucket, keyed by object path.
type Store struct {
	db      *mongo.Database
	bucket  string
	baseURL string
}

// Connect opens a client for uri and pings it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// New returns a GridFS store over db.
func New(db *mongo.Database, bucket, baseURL string) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("mongo database is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{db: db, bucket: bucket, baseURL: baseURL}, nil
}

func (s *Store) openBucket(ctx context.Context) (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := bucket.SetWriteDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set write deadline: %w", err)
		}
		if err := bucket.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("set read deadline: %w", err)
		}
	}
	return bucket, nil
}

// Put uploads body under objectPath and returns the public URL. A later
// upload with the same path becomes the served revision.
func (s *Store) Put(ctx context.Context, objectPath string, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleaned, err := blob.CleanPath(objectPath)
	if err != nil {
		return "", err
	}
	bucket, err := s.openBucket(ctx)
	if err != nil {
		return "", err
	}
	uploadOpts := options.GridFSUpload().SetMetadata(bson.D{
		{Key: "contentType", Value: contentType},
		{Key: "uploadedAt", Value: time.Now().UTC()},
	})
	if _, err := bucket.UploadFromStream(cleaned, body, uploadOpts); err != nil {
		if errors.Is(err, blob.ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("upload gridfs file: %w", err)
	}
	return blob.PublicURL(s.baseURL, cleaned), nil
}

// Open streams the latest revision stored under objectPath.
func (s *Store) Open(ctx context.Context, objectPath string) (blob.Object, error) {
	if err := ctx.Err(); err != nil {
		return blob.Object{}, err
	}
	cleaned, err := blob.CleanPath(objectPath)
	if err != nil {
		return blob.Object{}, err
	}
	bucket, err := s.openBucket(ctx)
	if err != nil {
		return blob.Object{}, err
	}
	stream, err := bucket.OpenDownloadStreamByName(cleaned)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return blob.Object{}, blob.ErrNotFound
		}
		return blob.Object{}, fmt.Errorf("open gridfs file: %w", err)
	}
	file := stream.GetFile()
	contentType := blob.ContentTypeForPath(cleaned)
	if file != nil && file.Metadata != nil {
		if value, ok := file.Metadata.Lookup("contentType").StringValueOK(); ok && value != "" {
			contentType = value
		}
	}
	var size int64
	if file != nil {
		size = file.Length
	}
	return blob.Object{ReadCloser: stream, ContentType: contentType, Size: size}, nil
}

var _ blob.Store = (*Store)(nil)
