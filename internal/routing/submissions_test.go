package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"compile-and-judge/internal/files"
	"compile-and-judge/internal/judge"
	"compile-and-judge/internal/queue"
	"compile-and-judge/internal/repository"
	"compile-and-judge/internal/sandbox"
	"compile-and-judge/internal/validation"
)

type fakeRepository struct {
	mu          sync.Mutex
	submissions map[string]*repository.Submission
	err         error
}

func (f *fakeRepository) InsertSubmission(_ context.Context, submission *repository.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	submission.CreatedAt = time.Now()
	f.submissions[submission.ID] = submission
	return nil
}

func (f *fakeRepository) UpdateVerdict(_ context.Context, verdict *judge.SubmissionVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	record := f.submissions[verdict.SubmissionID]
	record.Status = verdict.Status.String()
	record.ScoreEarned = verdict.ScoreEarned
	record.Message = verdict.Message
	record.FirstFailingTest = verdict.FirstFailingTestIndex
	return nil
}

func (f *fakeRepository) GetSubmission(_ context.Context, id string) (*repository.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	record, ok := f.submissions[id]

	if !ok {
		return nil, errors.Wrapf(repository.ErrNotFound, "by id %s", id)
	}

	return record, nil
}

type fakeQueue struct {
	messages [][]byte
	err      error
}

func (f *fakeQueue) SubmitMessageToQueue(data []byte) error {
	if f.err != nil {
		return f.err
	}

	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeQueue) Stop() {}

type fakeProgress map[string]*judge.ProgressEvent

func (f fakeProgress) Latest(_ context.Context, id string) (*judge.ProgressEvent, error) {
	return f[id], nil
}

type RoutingSuite struct {
	suite.Suite

	files    files.Files
	repo     *fakeRepository
	queue    *fakeQueue
	progress fakeProgress
	server   *httptest.Server
}

func (s *RoutingSuite) SetupTest() {
	var err error

	s.files, err = files.NewFilesHandler(&files.Config{Local: &files.LocalConfig{LocalRootPath: s.T().TempDir()}})
	s.Require().NoError(err)

	validate, translator, err := validation.New()
	s.Require().NoError(err)

	s.repo = &fakeRepository{submissions: map[string]*repository.Submission{}}
	s.queue = &fakeQueue{}
	s.progress = fakeProgress{}

	s.server = httptest.NewServer(NewRouter(&SubmissionHandlers{
		FileHandler: s.files,
		Repo:        s.repo,
		Queue:       s.queue,
		Registry:    sandbox.NewDefaultRegistry(),
		Translator:  translator,
		Validator:   validate,
		Progress:    s.progress,
	}))
}

func (s *RoutingSuite) TearDownTest() {
	s.server.Close()
}

func (s *RoutingSuite) post(body string) (*http.Response, map[string]any) {
	resp, err := http.Post(s.server.URL+"/submissions", "application/json", strings.NewReader(body))
	s.Require().NoError(err)

	return resp, s.decode(resp)
}

func (s *RoutingSuite) get(path string) (*http.Response, map[string]any) {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)

	return resp, s.decode(resp)
}

func (s *RoutingSuite) decode(resp *http.Response) map[string]any {
	defer resp.Body.Close()

	var body map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))

	return body
}

const validSubmission = `{
	"language": "py",
	"source_code": "print(input())",
	"tests": [
		{"input": "1", "expected_output": "1", "points": 4},
		{"input": "2", "expected_output": "2", "points": 6}
	],
	"limits": {"wall_time_ms": 1500}
}`

func (s *RoutingSuite) TestCreateSubmission() {
	resp, body := s.post(validSubmission)

	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	id := body["id"].(string)
	_, err := uuid.Parse(id)
	s.Require().NoError(err)

	source, err := s.files.GetFile(id, files.SourceFile)
	s.Require().NoError(err)
	s.Equal("print(input())", string(source))

	data, err := s.files.GetFile(id, files.TestsFile)
	s.Require().NoError(err)

	var tests []judge.TestCase
	s.Require().NoError(json.Unmarshal(data, &tests))
	s.Equal([]judge.TestCase{
		{Input: "1", ExpectedOutput: "1", Points: 4},
		{Input: "2", ExpectedOutput: "2", Points: 6},
	}, tests)

	record := s.repo.submissions[id]
	s.Require().NotNil(record)
	s.Equal(judge.Pending.String(), record.Status)
	s.Equal(10, record.ScoreTotal)

	s.Require().Len(s.queue.messages, 1)

	var message queue.SubmissionMessage
	s.Require().NoError(json.Unmarshal(s.queue.messages[0], &message))
	s.Equal(queue.SubmissionMessage{ID: id, Language: "py", Limits: queue.LimitsMessage{WallTimeMs: 1500}}, message)
}

func (s *RoutingSuite) TestCreateSubmissionRejected() {
	tests := []struct {
		name    string
		body    string
		code    int
		message string
	}{
		{name: "empty body", body: "", code: http.StatusBadRequest, message: "Request body must not be empty"},
		{name: "bad json", body: `{"language": `, code: http.StatusBadRequest, message: "Request body contains badly-formed JSON"},
		{name: "unknown field", body: `{"lang": "py"}`, code: http.StatusBadRequest, message: `Request body contains unknown field "lang"`},
		{name: "wrong type", body: `{"language": 1}`, code: http.StatusBadRequest, message: `Request body contains an invalid value for the "language" field`},
		{name: "missing source", body: `{"language": "py", "tests": [{"points": 1}]}`, code: http.StatusBadRequest, message: "SourceCode is a required field"},
		{name: "no tests", body: `{"language": "py", "source_code": "x", "tests": []}`, code: http.StatusBadRequest, message: "Tests must contain at least 1 item"},
		{name: "negative points", body: `{"language": "py", "source_code": "x", "tests": [{"points": -1}]}`, code: http.StatusBadRequest, message: "Points must be 0 or greater"},
		{name: "negative limits", body: `{"language": "py", "source_code": "x", "tests": [{"points": 1}], "limits": {"memory_mb": -1}}`, code: http.StatusBadRequest, message: "MemoryMb must be 0 or greater"},
		{name: "unknown language", body: `{"language": "cobol", "source_code": "x", "tests": [{"points": 1}]}`, code: http.StatusBadRequest, message: "Unsupported language: cobol"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, body := s.post(tt.body)

			s.Equal(tt.code, resp.StatusCode)
			s.Require().NotEmpty(body["errors"])
			s.Contains(body["errors"].([]any)[0], tt.message)
		})
	}

	s.Empty(s.queue.messages)
	s.Empty(s.repo.submissions)
}

func (s *RoutingSuite) TestCreateSubmissionQueueFailure() {
	s.queue.err = errors.New("nsq: not connected")

	resp, _ := s.post(validSubmission)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)

	s.Require().Len(s.repo.submissions, 1)

	for _, record := range s.repo.submissions {
		s.Equal(judge.SystemError.String(), record.Status, "unqueued submissions are never left pending")
	}
}

func (s *RoutingSuite) TestCreateSubmissionDatabaseFailure() {
	s.repo.err = errors.New("connection refused")

	resp, _ := s.post(validSubmission)

	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Empty(s.queue.messages)
}

func (s *RoutingSuite) TestGetPendingSubmission() {
	_, created := s.post(validSubmission)
	id := created["id"].(string)

	s.progress[id] = &judge.ProgressEvent{SubmissionID: id, Phase: judge.PhaseRunning, Test: 2, TotalTests: 2}

	resp, body := s.get("/submissions/" + id)

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(id, body["id"])
	s.Equal("py", body["language"])
	s.Equal("Pending", body["status"])
	s.EqualValues(10, body["score_total"])
	s.NotContains(body, "first_failing_test_index")

	progress := body["progress"].(map[string]any)
	s.Equal("Running", progress["phase"])
	s.EqualValues(2, progress["test"])
}

func (s *RoutingSuite) TestGetJudgedSubmission() {
	_, created := s.post(validSubmission)
	id := created["id"].(string)

	failing := 2
	s.progress[id] = &judge.ProgressEvent{SubmissionID: id, Phase: judge.PhaseFinished}
	s.Require().NoError(s.repo.UpdateVerdict(context.Background(), &judge.SubmissionVerdict{
		SubmissionID:          id,
		Status:                judge.WrongAnswer,
		ScoreEarned:           4,
		Message:               "Wrong Answer on test #2",
		FirstFailingTestIndex: &failing,
	}))

	resp, body := s.get("/submissions/" + id)

	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("WrongAnswer", body["status"])
	s.EqualValues(4, body["score_earned"])
	s.EqualValues(2, body["first_failing_test_index"])
	s.NotContains(body, "progress", "finished submissions carry no progress")
}

func (s *RoutingSuite) TestGetSubmissionErrors() {
	resp, _ := s.get("/submissions/not-an-id")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.get("/submissions/" + uuid.NewString())
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *RoutingSuite) TestGetLanguages() {
	resp, err := http.Get(s.server.URL + "/languages")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var languages []LanguageResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&languages))

	s.Equal(http.StatusOK, resp.StatusCode)

	ids := make([]string, 0, len(languages))
	compiled := map[string]bool{}

	for _, language := range languages {
		ids = append(ids, language.ID)
		compiled[language.ID] = language.Compiled
	}

	s.Equal([]string{"c", "cpp", "go", "java", "js", "py"}, ids)
	s.True(compiled["cpp"])
	s.False(compiled["py"])
}

func TestHandleDecodeErrorTooLarge(t *testing.T) {
	recorder := httptest.NewRecorder()

	handleDecodeError(recorder, errors.Wrap(&http.MaxBytesError{Limit: maxRequestBytes}, "decode"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "Request body must not be larger than 8MB")
}

func TestHandleDecodeErrorUnexpected(t *testing.T) {
	recorder := httptest.NewRecorder()

	handleDecodeError(recorder, errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
}

func TestRoutingSuite(t *testing.T) {
	suite.Run(t, new(RoutingSuite))
}
