package models

import (
	"fmt"

	"go.yaml.in/yaml/v4"
)

type PlaylistItem struct {
	Title       string `yaml:"title" json:"title"`
	Summary     string `yaml:"summary" json:"summary,omitempty"`
	Poster      string `yaml:"poster" json:"poster,omitempty"`
	URL         string `yaml:"url" json:"url"`
	SubtitleURL string `yaml:"subtitle" json:"subtitle,omitempty"`
	LyricsURL   string `yaml:"lyrics" json:"lyrics,omitempty"`
}

type rawPlaylistItem struct {
	Title    string `yaml:"title"`
	Summary  string `yaml:"summary"`
	Poster   string `yaml:"poster"`
	URL      string `yaml:"url"`
	Subtitle string `yaml:"subtitle"`
	CC       string `yaml:"cc"`
	Lyrics   string `yaml:"lyrics"`
}

func (p *PlaylistItem) UnmarshalYAML(value *yaml.Node) error {
	var raw rawPlaylistItem
	err := value.Decode(&raw)
	if err != nil {
		return err
	}
	subtitle := raw.Subtitle
	if subtitle == "" {
		subtitle = raw.CC
	}
	*p = PlaylistItem{
		Title:       raw.Title,
		Summary:     raw.Summary,
		Poster:      raw.Poster,
		URL:         raw.URL,
		SubtitleURL: subtitle,
		LyricsURL:   raw.Lyrics,
	}
	return nil
}

// Source is one of Single, URLList or ItemList.
type Source interface {
	source()
}

type Single string

type URLList []string

type ItemList []PlaylistItem

func (Single) source()   {}
func (URLList) source()  {}
func (ItemList) source() {}

// SourceNode decodes the polymorphic `source` YAML value.
type SourceNode struct {
	Source Source
}

func (s *SourceNode) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			s.Source = nil
			return nil
		}
		s.Source = Single(value.Value)
		return nil
	case yaml.SequenceNode:
		if len(value.Content) == 0 {
			s.Source = URLList{}
			return nil
		}
		if value.Content[0].Kind == yaml.ScalarNode {
			var urls []string
			err := value.Decode(&urls)
			if err != nil {
				return err
			}
			s.Source = URLList(urls)
			return nil
		}
		var items []PlaylistItem
		err := value.Decode(&items)
		if err != nil {
			return err
		}
		s.Source = ItemList(items)
		return nil
	}
	return fmt.Errorf("line %d: source must be a string or a list", value.Line)
}
