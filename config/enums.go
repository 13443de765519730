package config

import (
	"fmt"

	yaml "gopkg.in/yaml.v3"
)

// Specification of requested output type.
type OutputFmt int

const (
	OutputFmtEpub2 OutputFmt = iota
	OutputFmtEpub3
)

var outputFmtNames = []string{"epub2", "epub3"}

func (o OutputFmt) String() string {
	if o < 0 || int(o) >= len(outputFmtNames) {
		return fmt.Sprintf("OutputFmt(%d)", int(o))
	}
	return outputFmtNames[o]
}

func (o OutputFmt) Ext() string {
	return ".epub"
}

func ParseOutputFmt(name string) (OutputFmt, error) {
	for i, n := range outputFmtNames {
		if n == name {
			return OutputFmt(i), nil
		}
	}
	return OutputFmtEpub2, fmt.Errorf("%s is not a valid OutputFmt", name)
}

func OutputFmtNames() []string {
	return append([]string{}, outputFmtNames...)
}

// Specification of cover acquisition mode.
type CoverMode int

const (
	CoverModeNone CoverMode = iota
	CoverModeGenerate
	CoverModeSearch
	CoverModeFile
)

var coverModeNames = []string{"none", "generate", "search", "file"}

func (m CoverMode) String() string {
	if m < 0 || int(m) >= len(coverModeNames) {
		return fmt.Sprintf("CoverMode(%d)", int(m))
	}
	return coverModeNames[m]
}

func ParseCoverMode(name string) (CoverMode, error) {
	for i, n := range coverModeNames {
		if n == name {
			return CoverMode(i), nil
		}
	}
	return CoverModeNone, fmt.Errorf("%s is not a valid CoverMode", name)
}

func (m CoverMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *CoverMode) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return err
	}
	v, err := ParseCoverMode(name)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
