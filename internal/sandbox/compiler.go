package sandbox

import (
	"os"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// ErrLanguageNotFound is returned when a submission references a language
// that is not part of the configured registry.
var ErrLanguageNotFound = errors.New("language not found")

// LanguageProfile is the complete build and run recipe for a single language.
// Every language is "compile (optional) then run", the differences between
// languages are expressed entirely through this data.
type LanguageProfile struct {
	// The key submissions use to reference the language, e.g. py or cpp.
	ID string
	// The human readable name of the language shown to users.
	DisplayName string
	// The name the source code is written to inside the workspace.
	SourceFilename string
	// The optional command used to build the source, interpreted languages
	// leave this empty and skip compilation entirely.
	CompileCommand []string
	// The command executed once per test case.
	RunCommand []string
	// The docker image every compile and run invocation is executed within.
	RuntimeImage string
}

// Interpreted reports if the language has no compile step.
func (l *LanguageProfile) Interpreted() bool {
	return len(l.CompileCommand) == 0
}

func (l *LanguageProfile) validate() error {
	switch {
	case strings.TrimSpace(l.ID) == "":
		return errors.New("language id is required")
	case strings.TrimSpace(l.SourceFilename) == "":
		return errors.Errorf("language %s has no source filename", l.ID)
	case strings.ContainsAny(l.SourceFilename, `/\`):
		return errors.Errorf("language %s source filename must not contain a path", l.ID)
	case len(l.RunCommand) == 0:
		return errors.Errorf("language %s has no run command", l.ID)
	case strings.TrimSpace(l.RuntimeImage) == "":
		return errors.Errorf("language %s has no runtime image", l.ID)
	}

	return nil
}

// Registry is the immutable mapping between language ids and their profiles.
// It is built once at start up and never mutated, which is what allows every
// judging worker to read from it concurrently without synchronization.
type Registry struct {
	languages map[string]LanguageProfile
}

// NewRegistry validates and indexes the given profiles. Duplicate ids are
// rejected rather than silently overwritten.
func NewRegistry(profiles ...LanguageProfile) (*Registry, error) {
	languages := make(map[string]LanguageProfile, len(profiles))

	for _, profile := range profiles {
		if err := profile.validate(); err != nil {
			return nil, err
		}

		if _, ok := languages[profile.ID]; ok {
			return nil, errors.Errorf("language %s is defined more than once", profile.ID)
		}

		// copy the commands so the caller cannot mutate the registry through
		// the slices it handed in.
		profile.CompileCommand = append([]string(nil), profile.CompileCommand...)
		profile.RunCommand = append([]string(nil), profile.RunCommand...)

		if profile.DisplayName == "" {
			profile.DisplayName = profile.ID
		}

		languages[profile.ID] = profile
	}

	return &Registry{languages: languages}, nil
}

// Resolve returns a copy of the profile for the given language.
func (r *Registry) Resolve(languageID string) (*LanguageProfile, error) {
	profile, ok := r.languages[languageID]

	if !ok {
		return nil, errors.Wrapf(ErrLanguageNotFound, "unsupported language %q", languageID)
	}

	profile.CompileCommand = append([]string(nil), profile.CompileCommand...)
	profile.RunCommand = append([]string(nil), profile.RunCommand...)

	return &profile, nil
}

// Languages returns every registered profile sorted by id.
func (r *Registry) Languages() []LanguageProfile {
	profiles := make([]LanguageProfile, 0, len(r.languages))

	for _, profile := range r.languages {
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})

	return profiles
}

// DefaultLanguages are the languages supported out of the box. Compiled
// languages write their artifact into the workspace so every test case of a
// submission reuses the single binary.
var DefaultLanguages = []LanguageProfile{
	{
		ID:             "c",
		DisplayName:    "C11",
		SourceFilename: "main.c",
		CompileCommand: []string{"gcc", "-std=gnu11", "-O2", "-pipe", "-static", "-s", "-o", "main", "main.c", "-lm"},
		RunCommand:     []string{"./main"},
		RuntimeImage:   "gcc:13.2",
	},
	{
		ID:             "cpp",
		DisplayName:    "C++17",
		SourceFilename: "main.cpp",
		CompileCommand: []string{"g++", "-std=gnu++17", "-O2", "-pipe", "-static", "-s", "-o", "main", "main.cpp"},
		RunCommand:     []string{"./main"},
		RuntimeImage:   "gcc:13.2",
	},
	{
		ID:             "go",
		DisplayName:    "Go",
		SourceFilename: "main.go",
		CompileCommand: []string{"go", "build", "-o", "main", "main.go"},
		RunCommand:     []string{"./main"},
		RuntimeImage:   "golang:1.22-alpine",
	},
	{
		ID:             "java",
		DisplayName:    "Java 17",
		SourceFilename: "Main.java",
		CompileCommand: []string{"javac", "-encoding", "UTF-8", "Main.java"},
		RunCommand:     []string{"java", "-Xss64m", "-Xms64m", "-Xmx256m", "-cp", ".", "Main"},
		RuntimeImage:   "eclipse-temurin:17-jdk",
	},
	{
		ID:             "js",
		DisplayName:    "JavaScript (Node.js)",
		SourceFilename: "main.js",
		RunCommand:     []string{"node", "main.js"},
		RuntimeImage:   "node:20-slim",
	},
	{
		ID:             "py",
		DisplayName:    "Python 3",
		SourceFilename: "main.py",
		RunCommand:     []string{"python3", "-B", "main.py"},
		RuntimeImage:   "python:3.11-slim",
	},
}

// NewDefaultRegistry builds the registry from DefaultLanguages.
func NewDefaultRegistry() *Registry {
	registry, err := NewRegistry(DefaultLanguages...)

	if err != nil {
		panic(errors.Wrap(err, "default languages are invalid"))
	}

	return registry
}

type languageFile struct {
	Languages []languageEntry `toml:"language"`
}

type languageEntry struct {
	ID             string `toml:"id"`
	DisplayName    string `toml:"display_name"`
	SourceFilename string `toml:"source_filename"`
	CompileCommand string `toml:"compile_command"`
	RunCommand     string `toml:"run_command"`
	RuntimeImage   string `toml:"runtime_image"`
}

// ParseRegistry reads a TOML language configuration. Commands are written as
// shell-style strings and split into argument lists, no shell is involved
// when they are later executed.
//
//	[[language]]
//	id = "py"
//	source_filename = "main.py"
//	run_command = "python3 main.py"
//	runtime_image = "python:3.11-slim"
func ParseRegistry(data []byte) (*Registry, error) {
	var file languageFile

	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse language configuration")
	}

	if len(file.Languages) == 0 {
		return nil, errors.New("language configuration defines no languages")
	}

	profiles := make([]LanguageProfile, 0, len(file.Languages))

	for _, entry := range file.Languages {
		runCommand, err := shlex.Split(entry.RunCommand)

		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse run command of %s", entry.ID)
		}

		var compileCommand []string

		if strings.TrimSpace(entry.CompileCommand) != "" {
			if compileCommand, err = shlex.Split(entry.CompileCommand); err != nil {
				return nil, errors.Wrapf(err, "failed to parse compile command of %s", entry.ID)
			}
		}

		profiles = append(profiles, LanguageProfile{
			ID:             entry.ID,
			DisplayName:    entry.DisplayName,
			SourceFilename: entry.SourceFilename,
			CompileCommand: compileCommand,
			RunCommand:     runCommand,
			RuntimeImage:   entry.RuntimeImage,
		})
	}

	return NewRegistry(profiles...)
}

// LoadRegistry loads the registry from the given TOML file, when no path is
// provided the default languages are used.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewDefaultRegistry(), nil
	}

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "failed to read language configuration %s", path)
	}

	return ParseRegistry(data)
}
