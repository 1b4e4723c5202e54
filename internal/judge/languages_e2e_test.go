//go:build e2e

// Test suite designed to target every language of the default registry in a
// way that will continue to cover additional languages in the future. Each
// language provides a solution summing the two numbers of its input.

package judge

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compile-and-judge/internal/sandbox"
)

var sumSolutions = map[string]string{
	"c": `#include <stdio.h>
int main(void) { long a, b; scanf("%ld %ld", &a, &b); printf("%ld\n", a + b); return 0; }
`,
	"cpp": `#include <iostream>
int main() { long a, b; std::cin >> a >> b; std::cout << a + b << std::endl; return 0; }
`,
	"go": `package main

import "fmt"

func main() { var a, b int64; fmt.Scan(&a, &b); fmt.Println(a + b) }
`,
	"java": `import java.util.Scanner;

public class Main {
    public static void main(String[] args) {
        Scanner in = new Scanner(System.in);
        System.out.println(in.nextLong() + in.nextLong());
    }
}
`,
	"js": `const [a, b] = require("fs").readFileSync(0, "utf8").trim().split(/\s+/).map(Number);
console.log(a + b);
`,
	"py": `a, b = map(int, input().split())
print(a + b)
`,
}

func TestEveryLanguageIsJudged(t *testing.T) {
	dockerClient, dockerErr := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, dockerErr, "docker is required")

	profile := sandbox.GetProfileForMachine()

	config := sandbox.DefaultDockerConfig
	config.Runtime = profile.Runtime

	registry := sandbox.NewDefaultRegistry()
	judge := New(registry, sandbox.NewWorkspaces(t.TempDir(), ""), sandbox.NewDockerExecutor(dockerClient, config), profile)

	for _, language := range registry.Languages() {
		language := language

		t.Run(fmt.Sprintf("sum check for %s", language.ID), func(t *testing.T) {
			t.Parallel()

			source, ok := sumSolutions[language.ID]
			require.True(t, ok, "every language requires a solution")

			verdict := judge.Evaluate(context.Background(), &Submission{
				ID:         "sum-" + language.ID,
				Language:   language.ID,
				SourceCode: source,
				Tests: []TestCase{
					{Input: "1 2", ExpectedOutput: "3", Points: 1},
					{Input: "-5 5\n", ExpectedOutput: "0", Points: 1},
					{Input: "4000000000 1", ExpectedOutput: "4000000001", Points: 1},
				},
			})

			assert.Equal(t, Accepted, verdict.Status, verdict.Message)
			assert.Equal(t, 3, verdict.ScoreEarned)
		})
	}
}
