// Package deadletter keeps the records the relay could not process in an S3 bucket.
package deadletter

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/common/version"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/log"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

const (
	unknownHostname = "<unknown>"

	keyTemplate = "<prefix>/<year>/<month>/<day>/<category>/<hash>.json"

	categoryS3Error = "s3_client"
)

var ErrNilRecord = errors.New("nil record")

// ObjectPutter is the part of the S3 client the writer needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Writer struct {
	s3client ObjectPutter
	clock    clockwork.Clock

	bucket string
	prefix string

	hostname string
}

func NewS3Writer(s3client ObjectPutter, clock clockwork.Clock, bucket string, prefix string) S3Writer {
	hostname, err := os.Hostname()
	if err != nil {
		log.Logger().Error(err, "failed to get hostname, falling backing to "+unknownHostname)

		hostname = unknownHostname
	}

	return S3Writer{
		s3client: s3client,
		clock:    clock,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
		hostname: hostname,
	}
}

// Process makes the writer usable as the relay error pipeline.
func (r S3Writer) Process(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	return r.WriteDeadLetter(ctx, pErr)
}

func (r S3Writer) WriteDeadLetter(ctx context.Context, pErr pipeline.ErrProcessingError) error {
	if pErr.Record == nil {
		return ErrNilRecord
	}

	now := r.clock.Now().UTC()

	obj := r.createDeadLetter(pErr, now)

	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to marshal local model: %w", err)
	}

	key := r.computeObjectKey(pErr, now)

	params := &s3.PutObjectInput{
		Bucket: &r.bucket,
		Key:    &key,
		Body:   bytes.NewReader(b),
	}

	_, err = r.s3client.PutObject(ctx, params)
	if err != nil {
		return common.NewRetryableErrProcessingError(err, categoryS3Error, nil, "failed to write %s in s3", key)
	}

	return nil
}

func (r S3Writer) createDeadLetter(pErr pipeline.ErrProcessingError, now time.Time) DeadLetter {
	ret := DeadLetter{
		ProcessingContext: ProcessingContext{
			Component: Component{
				Branch:   version.Branch,
				Revision: version.Revision,
			},
			Time: now,
			Host: r.hostname,
		},
		Sources: Sources{
			Record:     string(pErr.Record),
			Additional: make([]KeyValue, 0, len(pErr.AdditionalInputs)),
		},
		Reason: Reason{
			Category: pErr.Category,
			Error:    pErr.Error(),
		},
	}

	for _, input := range pErr.AdditionalInputs {
		ret.Sources.Additional = append(ret.Sources.Additional, KeyValue{
			Source: input.Source,
			Key:    input.Key,
			Value:  input.Value,
		})
	}

	return ret
}

// computeObjectKey names the object after the record content: the same record dropped twice the same day is stored once.
func (r S3Writer) computeObjectKey(pErr pipeline.ErrProcessingError, now time.Time) string {
	hash := md5.Sum(pErr.Record)

	category := pErr.Category
	if category == "" {
		category = pipeline.UnknownCategory
	}

	template := strings.NewReplacer(
		"<prefix>", r.prefix,
		"<year>", fmt.Sprintf("%04d", now.Year()),
		"<month>", fmt.Sprintf("%02d", now.Month()),
		"<day>", fmt.Sprintf("%02d", now.Day()),
		"<category>", category,
		"<hash>", hex.EncodeToString(hash[:]),
	)

	return strings.TrimPrefix(template.Replace(keyTemplate), "/")
}
