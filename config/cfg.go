package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	CoverConfig struct {
		Mode             CoverMode `yaml:"mode" validate:"gte=0"`
		Path             string    `yaml:"path,omitempty" sanitize:"path_clean" validate:"omitempty,filepath"`
		Query            string    `yaml:"query,omitempty"`
		MinWidth         int       `yaml:"min_width" validate:"min=0"`
		MinHeight        int       `yaml:"min_height" validate:"min=0"`
		MinBytes         int       `yaml:"min_bytes" validate:"min=0"`
		AspectMin        float64   `yaml:"aspect_min" validate:"gte=0"`
		AspectMax        float64   `yaml:"aspect_max" validate:"gte=0"`
		ConvertPNGToJPEG bool      `yaml:"convert_png_to_jpeg"`
		Width            int       `yaml:"width" validate:"min=600"`
		Height           int       `yaml:"height" validate:"min=800"`
	}

	ImagesConfig struct {
		Embed       bool        `yaml:"embed"`
		MinBytes    int         `yaml:"min_bytes" validate:"min=0"`
		MinWidth    int         `yaml:"min_width" validate:"min=0"`
		MinHeight   int         `yaml:"min_height" validate:"min=0"`
		JPEGQuality int         `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		Cover       CoverConfig `yaml:"cover"`
	}

	EndnotesConfig struct {
		Title        string `yaml:"title" validate:"required"`
		BacklinkText string `yaml:"backlink_text" validate:"required"`
	}

	MetainformationConfig struct {
		TitleTemplate       string `yaml:"title_template"`
		CreatorNameTemplate string `yaml:"creator_name_template"`
	}

	DocumentConfig struct {
		FixZip                bool                  `yaml:"fix_zip"`
		StylesheetPath        string                `yaml:"stylesheet_path,omitempty" sanitize:"path_clean" validate:"omitempty,filepath"`
		OutputNameTemplate    string                `yaml:"output_name_template"`
		FileNameTransliterate bool                  `yaml:"file_name_transliterate"`
		CombineContainers     bool                  `yaml:"combine_containers"`
		Language              string                `yaml:"language" validate:"required"`
		Images                ImagesConfig          `yaml:"images"`
		Endnotes              EndnotesConfig        `yaml:"endnotes"`
		Metainformation       MetainformationConfig `yaml:"metainformation"`
	}

	FetchConfig struct {
		UserAgent      string  `yaml:"user_agent" validate:"required"`
		AcceptLanguage string  `yaml:"accept_language"`
		TimeoutSec     int     `yaml:"timeout_sec" validate:"min=1"`
		Retries        int     `yaml:"retries" validate:"min=1,max=10"`
		ThrottleMSec   int     `yaml:"throttle_msec" validate:"min=0"`
		Jitter         float64 `yaml:"jitter" validate:"gte=0,lte=1"`
		Workers        int     `yaml:"workers" validate:"min=1,max=16"`
		CachePath      string  `yaml:"cache_path" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Fetch     FetchConfig    `yaml:"fetch"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName      TemplateFieldName = "output_name_template"
	MetaTitleTemplateFieldName       TemplateFieldName = "title_template"
	MetaCreatorNameTemplateFieldName TemplateFieldName = "creator_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(MetaTitleTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(MetaCreatorNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
