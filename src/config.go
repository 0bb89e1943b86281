package storybook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultImageSize = 1024
	NamePlaceholder  = "{name}"

	DefaultNegativePrompt = "text, logo, watermark, nsfw, blood, gore, creepy, scary, low quality"
)

// ModelIDs accepts either a single string or a list of candidate IDs.
type ModelIDs []string

func (m *ModelIDs) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			*m = nil
			return nil
		}
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*m = ModelIDs{s}
		return nil
	case yaml.SequenceNode:
		var ids []string
		if err := n.Decode(&ids); err != nil {
			return err
		}
		*m = ids
		return nil
	default:
		return fmt.Errorf("line %d: model_id must be a string or a list of strings", n.Line)
	}
}

// FirstModelID resolves a candidate list: the first entry that is non-empty
// after trimming and is not a placeholder wins. It returns "" if none qualify.
func FirstModelID(ids []string) string {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || isPlaceholder(id) {
			continue
		}
		return id
	}
	return ""
}

// ModelConfig maps a local model key to the remote model and style.
type ModelConfig struct {
	Key            string   `yaml:"-" json:"key"`
	Title          string   `yaml:"title" json:"title"`
	ModelIDs       ModelIDs `yaml:"model_id" json:"model_ids"`
	ElementID      int      `yaml:"element_id" json:"element_id,omitempty"`
	DatasetID      string   `yaml:"dataset_id" json:"-"`
	Width          int      `yaml:"width" json:"width"`
	Height         int      `yaml:"height" json:"height"`
	StylePrompt    string   `yaml:"style_prompt" json:"style_prompt"`
	NegativePrompt string   `yaml:"negative_prompt" json:"negative_prompt,omitempty"`
}

// ModelID returns the resolved remote model ID, or "" when none is usable.
func (m ModelConfig) ModelID() string {
	return FirstModelID(m.ModelIDs)
}

// Page is one page of a story template.
type Page struct {
	Number       int      `yaml:"page" json:"page"`
	Scene        string   `yaml:"scene" json:"scene"`
	Text         string   `yaml:"text" json:"text"`
	ImagePrompts []string `yaml:"image_prompts" json:"image_prompts,omitempty"`
}

// StoryTemplate is an ordered list of pages plus a title. Both the title and
// the page text may contain {name}.
type StoryTemplate struct {
	Key          string `yaml:"-"`
	Title        string `yaml:"title"`
	DefaultModel string `yaml:"default_model"`
	PagesFile    string `yaml:"pages_file"`
	Pages        []Page `yaml:"pages"`
}

// TitleFor returns the title with the child's name filled in.
func (s StoryTemplate) TitleFor(childName string) string {
	return strings.ReplaceAll(s.Title, NamePlaceholder, childName)
}

type catalogFile struct {
	NegativePrompt *string                  `yaml:"negative_prompt"`
	Models         map[string]ModelConfig   `yaml:"models"`
	Stories        map[string]StoryTemplate `yaml:"stories"`
}

// Catalog is the immutable set of models and story templates. It is built
// once and shared read-only, so accessors hand out copies.
type Catalog struct {
	negativePrompt string
	models         map[string]ModelConfig
	stories        map[string]StoryTemplate
}

// LoadCatalog reads the YAML catalog at path. Page files named by stories are
// resolved relative to the catalog's directory.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading catalog %s: %v", ErrConfig, path, err)
	}
	return ParseCatalog(data, filepath.Dir(path))
}

// ParseCatalog decodes catalog YAML. Unknown fields are rejected.
func ParseCatalog(data []byte, baseDir string) (*Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: catalog is empty", ErrConfig)
		}
		return nil, fmt.Errorf("%w: parsing catalog: %v", ErrConfig, err)
	}

	models := make([]ModelConfig, 0, len(f.Models))
	for key, m := range f.Models {
		m.Key = key
		models = append(models, m)
	}
	stories := make([]StoryTemplate, 0, len(f.Stories))
	for key, s := range f.Stories {
		s.Key = key
		if s.PagesFile != "" {
			if len(s.Pages) > 0 {
				return nil, fmt.Errorf("%w: story %q: set either pages or pages_file, not both", ErrConfig, key)
			}
			pages, err := loadPages(resolvePath(baseDir, s.PagesFile))
			if err != nil {
				return nil, fmt.Errorf("%w: story %q: %v", ErrConfig, key, err)
			}
			s.Pages = pages
		}
		stories = append(stories, s)
	}

	negative := DefaultNegativePrompt
	if f.NegativePrompt != nil {
		negative = strings.TrimSpace(*f.NegativePrompt)
	}
	return NewCatalog(models, stories, negative)
}

func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func loadPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pages file: %v", err)
	}
	var pages []Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("parsing pages file %s: %v", path, err)
	}
	return pages, nil
}

// NewCatalog validates the given entries and builds a Catalog. Missing page
// numbers are assigned by position and pages are sorted by number.
func NewCatalog(models []ModelConfig, stories []StoryTemplate, negativePrompt string) (*Catalog, error) {
	c := &Catalog{
		negativePrompt: negativePrompt,
		models:         make(map[string]ModelConfig, len(models)),
		stories:        make(map[string]StoryTemplate, len(stories)),
	}

	for _, m := range models {
		if strings.TrimSpace(m.Key) == "" {
			return nil, fmt.Errorf("%w: model with empty key", ErrConfig)
		}
		if _, dup := c.models[m.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate model %q", ErrConfig, m.Key)
		}
		if m.Width < 0 || m.Height < 0 {
			return nil, fmt.Errorf("%w: model %q: width and height must be positive", ErrConfig, m.Key)
		}
		if m.Width == 0 {
			m.Width = DefaultImageSize
		}
		if m.Height == 0 {
			m.Height = DefaultImageSize
		}
		if m.ElementID < 0 {
			return nil, fmt.Errorf("%w: model %q: element_id must not be negative", ErrConfig, m.Key)
		}
		if m.Title == "" {
			m.Title = m.Key
		}
		m.ModelIDs = append(ModelIDs(nil), m.ModelIDs...)
		c.models[m.Key] = m
	}

	for _, s := range stories {
		if strings.TrimSpace(s.Key) == "" {
			return nil, fmt.Errorf("%w: story with empty key", ErrConfig)
		}
		if _, dup := c.stories[s.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate story %q", ErrConfig, s.Key)
		}
		if s.Title == "" {
			s.Title = s.Key
		}
		if s.DefaultModel != "" {
			if _, ok := c.models[s.DefaultModel]; !ok {
				return nil, fmt.Errorf("%w: story %q: default_model %q is not a known model", ErrConfig, s.Key, s.DefaultModel)
			}
		}
		pages, err := normalizePages(s.Pages)
		if err != nil {
			return nil, fmt.Errorf("%w: story %q: %v", ErrConfig, s.Key, err)
		}
		s.Pages = pages
		c.stories[s.Key] = s
	}
	return c, nil
}

func normalizePages(in []Page) ([]Page, error) {
	if len(in) == 0 {
		return nil, errors.New("story has no pages")
	}
	pages := make([]Page, len(in))
	copy(pages, in)
	for i := range pages {
		if pages[i].Number == 0 {
			pages[i].Number = i + 1
		}
		if pages[i].Number < 0 {
			return nil, fmt.Errorf("page %d: page number must be positive", pages[i].Number)
		}
		if strings.TrimSpace(pages[i].Scene) == "" && strings.TrimSpace(pages[i].Text) == "" {
			return nil, fmt.Errorf("page %d: scene or text is required", pages[i].Number)
		}
		pages[i].ImagePrompts = append([]string(nil), pages[i].ImagePrompts...)
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	for i := 1; i < len(pages); i++ {
		if pages[i].Number == pages[i-1].Number {
			return nil, fmt.Errorf("page %d is defined twice", pages[i].Number)
		}
	}
	return pages, nil
}

// NegativePrompt is the catalog-wide default negative prompt.
func (c *Catalog) NegativePrompt() string {
	return c.negativePrompt
}

// Model returns a copy of the model with the given key.
func (c *Catalog) Model(key string) (ModelConfig, bool) {
	m, ok := c.models[key]
	if !ok {
		return ModelConfig{}, false
	}
	m.ModelIDs = append(ModelIDs(nil), m.ModelIDs...)
	return m, true
}

// Story returns a copy of the story template with the given key.
func (c *Catalog) Story(key string) (StoryTemplate, bool) {
	s, ok := c.stories[key]
	if !ok {
		return StoryTemplate{}, false
	}
	s.Pages = append([]Page(nil), s.Pages...)
	return s, true
}

// Models lists all models sorted by key.
func (c *Catalog) Models() []ModelConfig {
	keys := make([]string, 0, len(c.models))
	for k := range c.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]ModelConfig, 0, len(keys))
	for _, k := range keys {
		m, _ := c.Model(k)
		out = append(out, m)
	}
	return out
}

// Stories lists all story templates sorted by key.
func (c *Catalog) Stories() []StoryTemplate {
	keys := make([]string, 0, len(c.stories))
	for k := range c.stories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]StoryTemplate, 0, len(keys))
	for _, k := range keys {
		s, _ := c.Story(k)
		out = append(out, s)
	}
	return out
}
