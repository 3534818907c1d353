package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS);
// set GCS_CREDENTIALS_JSON to provide explicit JSON locally.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func publicObjectURL(bucket, object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, object)
}

// UploadCoverImage stores a base64-encoded cover image plus a 200px-wide
// Lanczos thumbnail and returns their public URLs. Transient upload failures
// are retried up to 3 times with linear backoff (2s, 4s, 6s).
func UploadCoverImage(ctx context.Context, imageData string) (imageUrl string, thumbnailUrl string, err error) {
	decodedData, err := base64.StdEncoding.DecodeString(stripDataURIPrefix(imageData))
	if err != nil {
		return "", "", err
	}
	if len(decodedData) == 0 {
		return "", "", errors.New("empty image data")
	}

	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", "", errors.New("GCS_BUCKET is required")
	}

	img, err := imaging.Decode(bytes.NewReader(decodedData))
	if err != nil {
		return "", "", fmt.Errorf("invalid cover image: %v", err)
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
	var thumbnailBuffer bytes.Buffer
	if err := imaging.Encode(&thumbnailBuffer, thumbnail, imaging.JPEG); err != nil {
		return "", "", err
	}

	name := GenerateUniqueFilename()
	objectName := "covers/" + name + ".jpg"
	thumbName := "covers/thumbs/" + name + ".jpg"

	if err := uploadObjectWithRetry(ctx, bucketName, objectName, decodedData, 3); err != nil {
		return "", "", err
	}
	if err := uploadObjectWithRetry(ctx, bucketName, thumbName, thumbnailBuffer.Bytes(), 3); err != nil {
		return "", "", err
	}

	return publicObjectURL(bucketName, objectName), publicObjectURL(bucketName, thumbName), nil
}

func uploadObjectWithRetry(ctx context.Context, bucketName, objectName string, data []byte, maxRetries int) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = uploadObject(ctx, bucketName, objectName, data)
		if lastErr == nil {
			return nil
		}
		if attempt < maxRetries {
			// Linear backoff: 2s, 4s, 6s.
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	return fmt.Errorf("upload failed after %d attempts: %v", maxRetries, lastErr)
}

func uploadObject(ctx context.Context, bucketName, objectName string, data []byte) error {
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "image/jpeg"
	wc.Metadata = map[string]string{
		"x-goog-acl": "public-read",
	}
	return writeAndClose(wc, data)
}

// writeAndClose always closes the writer so the object handle is released;
// the write error wins when both fail.
func writeAndClose(wc io.WriteCloser, data []byte) error {
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return err
	}
	return wc.Close()
}

func stripDataURIPrefix(s string) string {
	if i := strings.Index(s, "base64,"); i >= 0 {
		return s[i+len("base64,"):]
	}
	return s
}
