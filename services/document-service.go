package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"collections-backend/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentService struct {
	DB *gorm.DB
}

type S3Client struct {
	Client *s3.Client
}

func NewS3Client() (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("unable to load SDK config: %v", err)
		return nil, errors.New("unable to load SDK config")
	}
	return &S3Client{Client: s3.NewFromConfig(cfg)}, nil
}

// ArchiveUpload stores the raw upload bytes once under a uuid key and
// records a UserDocument row for every user the upload touched. Without
// BUCKET_NAME the S3 put is skipped (local/dev) and only rows are written.
func (s *DocumentService) ArchiveUpload(userIDs []uint, filename string, data []byte) error {
	if len(userIDs) == 0 {
		return nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("documents/%s%s", uuid.NewString(), ext)

	if bucket := os.Getenv("BUCKET_NAME"); bucket != "" {
		s3Client, err := NewS3Client()
		if err != nil {
			return err
		}
		_, err = s3Client.Client.PutObject(context.TODO(), &s3.PutObjectInput{
			Bucket:      &bucket,
			Key:         &key,
			ContentType: aws.String(contentTypeForExt(ext)),
			Body:        bytes.NewReader(data),
		})
		if err != nil {
			log.Printf("failed to put object: %v", err)
			return errors.New("failed to put object")
		}
	}

	docs := make([]model.UserDocument, 0, len(userIDs))
	for _, id := range userIDs {
		docs = append(docs, model.UserDocument{
			UserID:   id,
			Filename: filename,
			FilePath: key,
			FileType: strings.TrimPrefix(ext, "."),
		})
	}
	return s.DB.Create(&docs).Error
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
