package memory

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

type Memory int64

const (
	Byte     Memory = 1
	Kilobyte        = 1024 * Byte
	Megabyte        = 1024 * Kilobyte
	Gigabyte        = 1024 * Megabyte
)

func (d Memory) Bytes() int64 { return int64(d) }

func (d Memory) Kilobytes() int64 { return int64(d) / int64(Kilobyte) }

func (d Memory) Megabytes() int64 { return int64(d) / int64(Megabyte) }

func (d Memory) Gigabytes() int64 { return int64(d) / int64(Gigabyte) }

func (d Memory) String() string { return units.BytesSize(float64(d)) }

// Parse reads a human readable memory size in the same format the docker
// cli accepts for --memory, e.g. "256m", "1g" or "512k". A bare number is
// treated as bytes.
func Parse(value string) (Memory, error) {
	size, err := units.RAMInBytes(value)

	if err != nil {
		return 0, errors.Wrapf(err, "invalid memory size %q", value)
	}

	if size < 0 {
		return 0, errors.Errorf("memory size %q must not be negative", value)
	}

	return Memory(size), nil
}

// UnmarshalText allows memory sizes to be written in configuration files in
// their human readable form.
func (d *Memory) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))

	if err != nil {
		return err
	}

	*d = parsed
	return nil
}

func (d Memory) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%db", int64(d))), nil
}
