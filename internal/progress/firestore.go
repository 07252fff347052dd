package progress

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// FirestoreOptions configures NewFirestoreStore
type FirestoreOptions struct {
	BaseURL   string
	Project   string
	Token     string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
}

// FirestoreStore keeps records as documents progress/{learner} through the
// Firestore REST API.
type FirestoreStore struct {
	client *resty.Client
	docs   string
}

// Firestore REST value envelopes
type (
	fsDocument struct {
		Name   string             `json:"name,omitempty"`
		Fields map[string]fsValue `json:"fields"`
	}

	fsValue struct {
		IntegerValue   *string  `json:"integerValue,omitempty"`
		TimestampValue *string  `json:"timestampValue,omitempty"`
		ArrayValue     *fsArray `json:"arrayValue,omitempty"`
	}

	fsArray struct {
		Values []fsValue `json:"values,omitempty"`
	}

	fsError struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
)

// NewFirestoreStore builds a REST client with retrying transport
func NewFirestoreStore(opts FirestoreOptions) (*FirestoreStore, error) {
	if opts.Project == "" {
		return nil, errors.New("missing firestore project")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://firestore.googleapis.com/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 200 * time.Millisecond
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.Retries
	retryClient.RetryWaitMin = opts.RetryWait
	retryClient.RetryWaitMax = 10 * opts.RetryWait
	retryClient.Logger = nil

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "Gorilin-Progress/1.0")
	client.JSONMarshal = sonic.Marshal
	client.JSONUnmarshal = sonic.Unmarshal
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	base := strings.TrimRight(opts.BaseURL, "/")
	return &FirestoreStore{
		client: client,
		docs:   fmt.Sprintf("%s/projects/%s/databases/(default)/documents/progress", base, opts.Project),
	}, nil
}

func (s *FirestoreStore) url(learner string) string {
	return s.docs + "/" + learner
}

func (s *FirestoreStore) Load(ctx context.Context, learner string) (*Record, error) {
	var doc fsDocument
	var apiErr fsError
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&doc).
		SetError(&apiErr).
		Get(s.url(learner))
	if err != nil {
		return nil, fmt.Errorf("firestore get: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, firestoreStatus("get", resp, apiErr)
	}
	return decodeDocument(learner, doc)
}

func (s *FirestoreStore) Save(ctx context.Context, rec *Record) error {
	var apiErr fsError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(encodeDocument(rec)).
		SetError(&apiErr).
		Patch(s.url(rec.LearnerID))
	if err != nil {
		return fmt.Errorf("firestore patch: %w", err)
	}
	if resp.IsError() {
		return firestoreStatus("patch", resp, apiErr)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, learner string) error {
	var apiErr fsError
	resp, err := s.client.R().
		SetContext(ctx).
		SetError(&apiErr).
		Delete(s.url(learner))
	if err != nil {
		return fmt.Errorf("firestore delete: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return firestoreStatus("delete", resp, apiErr)
	}
	return nil
}

func (s *FirestoreStore) Close() error { return nil }

func firestoreStatus(op string, resp *resty.Response, apiErr fsError) error {
	msg := apiErr.Error.Message
	if msg == "" {
		msg = resp.Status()
	}
	return fmt.Errorf("firestore %s: status %d: %s", op, resp.StatusCode(), msg)
}

func intValue(n int) fsValue {
	s := strconv.Itoa(n)
	return fsValue{IntegerValue: &s}
}

func timeValue(t time.Time) fsValue {
	s := t.UTC().Format(time.RFC3339Nano)
	return fsValue{TimestampValue: &s}
}

func encodeDocument(rec *Record) fsDocument {
	values := make([]fsValue, 0, len(rec.CompletedLessons))
	for _, id := range rec.CompletedLessons {
		values = append(values, intValue(id))
	}
	return fsDocument{Fields: map[string]fsValue{
		"completedLessons": {ArrayValue: &fsArray{Values: values}},
		"hearts":           intValue(rec.Hearts),
		"gorillaHearts":    intValue(rec.GorillaHearts),
		"createdAt":        timeValue(rec.CreatedAt),
		"updatedAt":        timeValue(rec.UpdatedAt),
	}}
}

func decodeDocument(learner string, doc fsDocument) (*Record, error) {
	rec := &Record{LearnerID: learner, CompletedLessons: []int{}}

	readInt := func(v fsValue) (int, error) {
		if v.IntegerValue == nil {
			return 0, nil
		}
		return strconv.Atoi(*v.IntegerValue)
	}
	readTime := func(v fsValue) (time.Time, error) {
		if v.TimestampValue == nil {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, *v.TimestampValue)
	}

	var err error
	if v, ok := doc.Fields["completedLessons"]; ok && v.ArrayValue != nil {
		for _, item := range v.ArrayValue.Values {
			id, err := readInt(item)
			if err != nil {
				return nil, fmt.Errorf("decode completedLessons: %w", err)
			}
			rec.CompletedLessons = append(rec.CompletedLessons, id)
		}
	}
	if rec.Hearts, err = readInt(doc.Fields["hearts"]); err != nil {
		return nil, fmt.Errorf("decode hearts: %w", err)
	}
	if rec.GorillaHearts, err = readInt(doc.Fields["gorillaHearts"]); err != nil {
		return nil, fmt.Errorf("decode gorillaHearts: %w", err)
	}
	if rec.CreatedAt, err = readTime(doc.Fields["createdAt"]); err != nil {
		return nil, fmt.Errorf("decode createdAt: %w", err)
	}
	if rec.UpdatedAt, err = readTime(doc.Fields["updatedAt"]); err != nil {
		return nil, fmt.Errorf("decode updatedAt: %w", err)
	}
	return rec, nil
}
