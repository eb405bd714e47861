package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Locally, set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSUploader writes export files into a single bucket.
type GCSUploader struct {
	Bucket string
}

// NewGCSUploaderFromEnv returns nil when EXPORT_BUCKET is unset.
func NewGCSUploaderFromEnv() *GCSUploader {
	bucket := strings.TrimSpace(os.Getenv("EXPORT_BUCKET"))
	if bucket == "" {
		return nil
	}
	return &GCSUploader{Bucket: bucket}
}

func (u *GCSUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if u == nil || u.Bucket == "" {
		return "", errors.New("EXPORT_BUCKET is required")
	}
	if contentType == "" {
		contentType = DetectContentType(objectName, data)
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(u.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}
	return fmt.Sprintf("gs://%s/%s", u.Bucket, objectName), nil
}

// DetectContentType sniffs data, fixing up office files that sniff as zip.
func DetectContentType(objectName string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" && strings.HasSuffix(objectName, ".xlsx") {
		return XlsxContentType
	}
	return mimeType
}
