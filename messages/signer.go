package messages

import (
	"time"

	"cloud.google.com/go/storage"
)

// BucketSigner signs GET urls for voice clips stored in a Cloud Storage
// bucket, one object per clip named after its timestamp key.
type BucketSigner struct {
	bucket *storage.BucketHandle
	ttl    time.Duration
}

func NewBucketSigner(bucket *storage.BucketHandle, ttl time.Duration) *BucketSigner {
	return &BucketSigner{bucket: bucket, ttl: ttl}
}

func (b *BucketSigner) SignedURL(object string) (string, error) {
	return b.bucket.SignedURL(object, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(b.ttl),
	})
}
