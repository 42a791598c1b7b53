// Package catalog supplies item banks from YAML files and caches them in
// front of slower providers.
package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"assessd/internal/assessment"
	"assessd/internal/model"
)

// File is the on-disk layout of a catalog file
type File struct {
	Catalogs []model.Catalog `yaml:"catalogs"`
}

// FileProvider serves catalogs parsed once from a YAML file
type FileProvider struct {
	catalogs map[model.InstrumentType]*model.Catalog
}

// Parse decodes and validates a catalog file. Every listed item is active.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	seen := make(map[model.InstrumentType]bool, len(f.Catalogs))
	for i := range f.Catalogs {
		c := &f.Catalogs[i]
		if seen[c.Instrument] {
			return nil, fmt.Errorf("%w: instrument %q listed twice", assessment.ErrInvalidCatalog, c.Instrument)
		}
		seen[c.Instrument] = true
		markActive(c)
		if err := assessment.ValidateCatalog(c); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// ReadFile parses the catalog file at path
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

func NewFileProvider(path string) (*FileProvider, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticProvider(f.Catalogs...), nil
}

// NewStaticProvider serves the given catalogs as is
func NewStaticProvider(catalogs ...model.Catalog) *FileProvider {
	p := &FileProvider{catalogs: make(map[model.InstrumentType]*model.Catalog, len(catalogs))}
	for i := range catalogs {
		c := catalogs[i]
		p.catalogs[c.Instrument] = &c
	}
	return p
}

func (p *FileProvider) Load(_ context.Context, instrument model.InstrumentType) (*model.Catalog, error) {
	c, ok := p.catalogs[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: no catalog for instrument %q", assessment.ErrInvalidCatalog, instrument)
	}
	return c, nil
}

func markActive(c *model.Catalog) {
	for i := range c.Questions {
		c.Questions[i].Active = true
	}
	for i := range c.Descriptors {
		c.Descriptors[i].Active = true
	}
	for i := range c.Situational {
		c.Situational[i].Active = true
	}
}
