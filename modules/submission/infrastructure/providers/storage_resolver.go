package providers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"teammate/server/modules/submission/domain/services"
	"teammate/server/seedwork/infrastructure/firebase"

	gcs "cloud.google.com/go/storage"
)

// FirebaseAudioURLResolver resolves a bare object path or a
// gs://bucket/object reference into a signed HTTPS URL so the
// transcoder and speech-to-text collaborators can fetch the recording
// directly.
type FirebaseAudioURLResolver struct {
	bucket *gcs.BucketHandle
	name   string
}

var _ services.AudioURLResolver = (*FirebaseAudioURLResolver)(nil)

func NewFirebaseAudioURLResolver(ctx context.Context, fb *firebase.Client, bucketName string) (*FirebaseAudioURLResolver, error) {
	storageClient, err := fb.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase storage client: %w", err)
	}
	bucket, err := storageClient.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("firebase storage bucket %s: %w", bucketName, err)
	}
	return &FirebaseAudioURLResolver{bucket: bucket, name: bucketName}, nil
}

// Resolve passes already-fetchable http(s) URLs through unchanged and
// signs anything else (a bare object path or a gs:// URI) for one hour.
func (r *FirebaseAudioURLResolver) Resolve(ctx context.Context, raw string) (string, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, nil
	}

	object := strings.TrimPrefix(raw, fmt.Sprintf("gs://%s/", r.name))
	signedURL, err := r.bucket.SignedURL(object, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(1 * time.Hour),
	})
	if err != nil {
		log.Printf("firebase: failed to sign url for %s: %v", object, err)
		return "", err
	}
	return signedURL, nil
}
