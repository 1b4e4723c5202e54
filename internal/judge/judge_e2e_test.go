//go:build e2e

// Test suite executing real submissions inside docker. Every runtime image of
// the default registry must be pulled beforehand, see cmd/tools/image-puller.

package judge

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/suite"

	"compile-and-judge/internal/sandbox"
)

type JudgeEndToEndSuite struct {
	suite.Suite

	ctx   context.Context
	root  string
	judge *Judge
}

func (s *JudgeEndToEndSuite) SetupTest() {
	dockerClient, dockerErr := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	s.Require().NoError(dockerErr, "docker is required")

	profile := sandbox.GetProfileForMachine()

	s.ctx = context.Background()
	s.root = s.T().TempDir()

	config := sandbox.DefaultDockerConfig
	config.Runtime = profile.Runtime

	s.judge = New(
		sandbox.NewDefaultRegistry(),
		sandbox.NewWorkspaces(s.root, ""),
		sandbox.NewDockerExecutor(dockerClient, config),
		profile,
	)
}

func (s *JudgeEndToEndSuite) TearDownTest() {
	entries, err := os.ReadDir(s.root)
	s.Require().NoError(err)
	s.Empty(entries, "workspaces must be removed")
}

func (s *JudgeEndToEndSuite) TestReverseInPython() {
	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:         "scenario-a",
		Language:   "py",
		SourceCode: "print(input().strip()[::-1])\n",
		Tests:      []TestCase{{Input: "abc", ExpectedOutput: "cba", Points: 10}},
	})

	s.Equal(Accepted, verdict.Status, verdict.Message)
	s.Equal(10, verdict.ScoreEarned)
}

func (s *JudgeEndToEndSuite) TestSyntaxErrorInCpp() {
	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:         "scenario-b",
		Language:   "cpp",
		SourceCode: "int main( { return 0 }\n",
		Tests:      []TestCase{{Input: "", ExpectedOutput: "", Points: 10}},
	})

	s.Equal(CompileError, verdict.Status)
	s.Equal(0, verdict.ScoreEarned)
	s.Contains(verdict.Message, "error")
}

func (s *JudgeEndToEndSuite) TestInfiniteLoopIsKilled() {
	started := time.Now()

	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:         "scenario-c",
		Language:   "py",
		SourceCode: "while True:\n    pass\n",
		Tests:      []TestCase{{Input: "", ExpectedOutput: "", Points: 10}},
		Limits:     sandbox.ResourceLimits{WallTime: time.Second},
	})

	s.Equal(TimeLimitExceeded, verdict.Status)
	s.Less(time.Since(started), time.Second*10, "the worker must not hang")
}

func (s *JudgeEndToEndSuite) TestSecondTestWrong() {
	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:         "scenario-d",
		Language:   "py",
		SourceCode: "print(int(input()) * 2)\n",
		Tests: []TestCase{
			{Input: "2", ExpectedOutput: "4", Points: 3},
			{Input: "5", ExpectedOutput: "11", Points: 7},
		},
	})

	s.Equal(WrongAnswer, verdict.Status)
	s.Require().NotNil(verdict.FirstFailingTestIndex)
	s.Equal(2, *verdict.FirstFailingTestIndex)
	s.Equal(3, verdict.ScoreEarned)
}

func (s *JudgeEndToEndSuite) TestNetworkIsUnavailable() {
	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:       "network",
		Language: "py",
		SourceCode: "import socket\n" +
			"try:\n" +
			"    socket.create_connection(('1.1.1.1', 53), timeout=1)\n" +
			"    print('connected')\n" +
			"except OSError:\n" +
			"    print('offline')\n",
		Tests: []TestCase{{ExpectedOutput: "offline", Points: 1}},
	})

	s.Equal(Accepted, verdict.Status, verdict.Message)
}

func (s *JudgeEndToEndSuite) TestMemoryLimit() {
	verdict := s.judge.Evaluate(s.ctx, &Submission{
		ID:         "memory",
		Language:   "py",
		SourceCode: "data = bytearray(512 * 1024 * 1024)\nprint(len(data))\n",
		Tests:      []TestCase{{ExpectedOutput: "", Points: 1}},
		Limits:     sandbox.ResourceLimits{Memory: 64 * 1024 * 1024},
	})

	s.Contains([]Status{MemoryLimitExceeded, RuntimeError}, verdict.Status)
}

func TestJudgeEndToEndSuite(t *testing.T) {
	suite.Run(t, new(JudgeEndToEndSuite))
}
