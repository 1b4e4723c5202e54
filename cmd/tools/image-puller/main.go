package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/fatih/color"
	"github.com/namsral/flag"
	"github.com/pkg/errors"

	"compile-and-judge/internal/sandbox"
)

var (
	red   = color.New(color.FgRed).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
)

// images maps every runtime image to the languages using it, many languages
// share a single image.
func images(registry *sandbox.Registry, filter string) (map[string][]string, error) {
	result := map[string][]string{}

	for _, language := range registry.Languages() {
		if filter != "" && language.ID != filter {
			continue
		}

		result[language.RuntimeImage] = append(result[language.RuntimeImage], language.ID)
	}

	if filter != "" && len(result) == 0 {
		return nil, errors.Errorf("language '%s' does not exist in supported languages", filter)
	}

	return result, nil
}

func pullImage(ctx context.Context, dockerClient *client.Client, image string, verbose bool) error {
	if _, _, err := dockerClient.ImageInspectWithRaw(ctx, image); err == nil {
		return nil
	} else if !errdefs.IsNotFound(err) {
		return errors.Wrapf(err, "failed to inspect %s", image)
	}

	reader, err := dockerClient.ImagePull(ctx, image, types.ImagePullOptions{})

	if err != nil {
		return errors.Wrapf(err, "failed to pull %s", image)
	}

	defer reader.Close()

	if !verbose {
		_, err = io.Copy(io.Discard, reader)
		return errors.Wrapf(err, "failed to pull %s", image)
	}

	return jsonmessage.DisplayJSONMessagesStream(reader, os.Stdout, os.Stdout.Fd(), false, nil)
}

func main() {
	var (
		filterName    string
		languagesFile string
		verbose       bool
	)

	flag.StringVar(&filterName, "language", "", "only pull the image of the given language")
	flag.StringVar(&languagesFile, "languages-file", "", "a TOML language registry, the built in languages are used when empty")
	flag.BoolVar(&verbose, "v", false, "")

	flag.Parse()

	registry := sandbox.NewDefaultRegistry()

	if languagesFile != "" {
		var err error

		if registry, err = sandbox.LoadRegistry(languagesFile); err != nil {
			color.Red("failed to load %s: %s", languagesFile, err)
			os.Exit(1)
		}
	}

	required, err := images(registry, strings.TrimSpace(filterName))

	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())

	if err != nil {
		color.Red("failed to create docker client: %s", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(required))

	for image := range required {
		names = append(names, image)
	}

	sort.Strings(names)

	failed := false

	for _, image := range names {
		languages := strings.Join(required[image], ", ")
		fmt.Printf("%s %s (%s)\n", red("Pulling image:"), green(image), languages)

		if err := pullImage(context.Background(), dockerClient, image, verbose); err != nil {
			failed = true
			fmt.Printf("%s %s\n", red("Failed image:"), err)

			continue
		}

		fmt.Printf("%s %s\n", red("Finished image:"), green(image))
	}

	if failed {
		os.Exit(1)
	}
}
