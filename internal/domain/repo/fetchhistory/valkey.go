// Package fetchhistory stores the last fetch outcome of every scheduler host, per project, in valkey.
package fetchhistory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"syscall"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"
)

// ValkeyRepo keeps one hash per project, one field per scheduler host.
type ValkeyRepo struct {
	client     valkey.Client
	expiration time.Duration
	keyPrefix  string
}

func NewValkeyRepo(client valkey.Client, expiration time.Duration, keyPrefix string) ValkeyRepo {
	return ValkeyRepo{
		client:     client,
		expiration: expiration,
		keyPrefix:  keyPrefix,
	}
}

func (r ValkeyRepo) WriteFetchRecord(ctx context.Context, record entity.FetchRecord) error {
	data, err := json.Marshal(mapToModels(record))
	if err != nil {
		return common.NewErrProcessingError(err, categoryInternalError, nil, "failed to marshal data")
	}

	key := r.key(record.Project)

	command := r.client.B().Hset().Key(key).FieldValue().FieldValue(record.Host, string(data)).Build()

	err = r.client.Do(ctx, command).Error()
	if err != nil {
		return r.wrapClientError(err, "failed to set hkey")
	}

	// The whole project entry expires once no host has fetched it for a while
	expireCommand := r.client.B().Expire().Key(key).Seconds(int64(r.expiration.Seconds())).Build()

	err = r.client.Do(ctx, expireCommand).Error()
	if err != nil {
		return r.wrapClientError(err, "failed to set expiration")
	}

	return nil
}

// GetFetchRecords returns the records of project, sorted by host.
func (r ValkeyRepo) GetFetchRecords(ctx context.Context, project string) ([]entity.FetchRecord, error) {
	command := r.client.B().Hgetall().Key(r.key(project)).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		return nil, r.wrapClientError(err, "failed to get all properties")
	}

	result, err := resp.AsStrMap()
	if err != nil {
		return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected hgetall response type for %s", project)
	}

	ret := make([]entity.FetchRecord, 0, len(result))

	for host, jsonRecord := range result {
		model := Record{}

		err := json.Unmarshal([]byte(jsonRecord), &model)
		if err != nil {
			return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "failed to unmarshal hgetall response for %s %s", project, host)
		}

		ret = append(ret, mapToEntity(project, host, model))
	}

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Host < ret[j].Host
	})

	return ret, nil
}

func (r ValkeyRepo) key(project string) string {
	return r.keyPrefix + project
}

func (r ValkeyRepo) wrapClientError(err error, reason string) error {
	if r.isRetryable(err) {
		return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "%s", reason)
	}

	return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "%s", reason)
}

func (r ValkeyRepo) isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError {
		return false
	}

	return vErr.IsTryAgain()
}
