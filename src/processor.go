package storybook

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode"

	"github.com/opd-ai/storybook/bookcompiler"
	"github.com/opd-ai/storybook/history"
)

const maxChildName = 64

// Request selects what to generate. ModelKey and ModelID are both optional;
// see Generator.resolveModel for the precedence.
type Request struct {
	StoryKey  string
	ChildName string
	ModelKey  string
	ModelID   string
}

// PageAsset is one generated page.
type PageAsset struct {
	Index        int
	Number       int
	Caption      string
	Prompt       string
	GenerationID string
	ImageURL     string
	Image        []byte
	ImagePath    string
}

// Book is the generator output, handed once to the assembler.
type Book struct {
	StoryKey  string
	Title     string
	ChildName string
	ModelKey  string
	ModelID   string
	Pages     []PageAsset
}

// Result describes a finished PDF.
type Result struct {
	PDFPath   string
	AssetDir  string
	Title     string
	PageCount int
	HistoryID string
}

// Generator turns story templates into books, one page at a time.
type Generator struct {
	Catalog    *Catalog
	Images     ImageClient
	Poller     *Poller
	OutputDir  string
	KeepImages bool
	NumImages  int
	History    history.Store
}

// NewGenerator wires a generator around images. The poller uses the same
// client for status calls.
func NewGenerator(catalog *Catalog, images ImageClient, poller *Poller, outputDir string) *Generator {
	if poller == nil {
		poller = NewPoller(images, DefaultPollInterval, DefaultPollTimeout)
	}
	if poller.Jobs == nil {
		poller.Jobs = images
	}
	return &Generator{
		Catalog:    catalog,
		Images:     images,
		Poller:     poller,
		OutputDir:  outputDir,
		KeepImages: true,
	}
}

type resolved struct {
	story    StoryTemplate
	model    ModelConfig
	modelKey string
	modelID  string
	child    string
}

func checkChildName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: child name is required", ErrValidation)
	}
	if len([]rune(name)) > maxChildName {
		return "", fmt.Errorf("%w: child name is longer than %d characters", ErrValidation, maxChildName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: child name contains control characters", ErrValidation)
		}
	}
	return name, nil
}

// resolveModel picks the model: an explicit model key first, then the story's
// default model, then a bare model ID override. A model ID override also
// replaces the IDs of a selected model.
func (g *Generator) resolveModel(req Request) (*resolved, error) {
	child, err := checkChildName(req.ChildName)
	if err != nil {
		return nil, err
	}
	storyKey := strings.TrimSpace(req.StoryKey)
	if storyKey == "" {
		return nil, fmt.Errorf("%w: story key is required", ErrConfig)
	}
	story, ok := g.Catalog.Story(storyKey)
	if !ok {
		return nil, fmt.Errorf("%w: unknown story %q", ErrConfig, storyKey)
	}

	modelKey := strings.TrimSpace(req.ModelKey)
	override := strings.TrimSpace(req.ModelID)
	var model ModelConfig
	switch {
	case modelKey != "":
		if model, ok = g.Catalog.Model(modelKey); !ok {
			return nil, fmt.Errorf("%w: unknown model %q", ErrConfig, modelKey)
		}
	case story.DefaultModel != "":
		modelKey = story.DefaultModel
		if model, ok = g.Catalog.Model(modelKey); !ok {
			return nil, fmt.Errorf("%w: story %q: unknown default model %q", ErrConfig, story.Key, modelKey)
		}
	case override != "":
		model = ModelConfig{Title: "custom model", Width: DefaultImageSize, Height: DefaultImageSize}
	default:
		return nil, fmt.Errorf("%w: no model selected for story %q: pass a model key or a model ID, or set default_model on the story", ErrConfig, story.Key)
	}

	modelID := model.ModelID()
	if override != "" {
		modelID = override
	}
	if modelID == "" {
		return nil, fmt.Errorf("%w: model %q has no usable model_id", ErrValidation, modelKey)
	}
	return &resolved{story: story, model: model, modelKey: modelKey, modelID: modelID, child: child}, nil
}

func (g *Generator) generationRequest(r *resolved, page Page) GenerationRequest {
	negative := r.model.NegativePrompt
	if negative == "" {
		negative = g.Catalog.NegativePrompt()
	}
	return GenerationRequest{
		Prompt:         BuildPagePrompt(r.child, r.model, page),
		ModelID:        r.modelID,
		Width:          r.model.Width,
		Height:         r.model.Height,
		ElementID:      r.model.ElementID,
		NegativePrompt: negative,
		NumImages:      g.NumImages,
	}
}

// Generate produces every page of the requested story in template order. The
// first failing page aborts the book with a *PageError.
func (g *Generator) Generate(ctx context.Context, req Request, progress Progressor) (*Book, error) {
	pr := orNull(progress)
	r, err := g.resolveModel(req)
	if err != nil {
		return nil, err
	}
	// Catch request problems before the first remote call.
	if err := ValidateGenerationRequest(g.generationRequest(r, r.story.Pages[0])); err != nil {
		return nil, err
	}

	book := &Book{
		StoryKey:  r.story.Key,
		Title:     r.story.TitleFor(r.child),
		ChildName: r.child,
		ModelKey:  r.modelKey,
		ModelID:   r.modelID,
	}
	total := len(r.story.Pages)
	pr.UpdateOutput(fmt.Sprintf("Generating %q: %d pages with model %s", book.Title, total, r.modelID))
	pr.UpdatePage(0, total)

	assetDir := AssetDir(g.OutputDir, r.child, r.story.Key)
	var written []string
	for i, page := range r.story.Pages {
		asset, err := g.generatePage(ctx, r, i, page, assetDir, pr)
		if err != nil {
			for _, p := range written {
				os.Remove(p)
			}
			return nil, &PageError{Index: i, Number: page.Number, Err: err}
		}
		if asset.ImagePath != "" {
			written = append(written, asset.ImagePath)
		}
		book.Pages = append(book.Pages, *asset)
		pr.UpdatePage(i+1, total)
	}
	return book, nil
}

func (g *Generator) generatePage(ctx context.Context, r *resolved, i int, page Page, assetDir string, pr Progressor) (*PageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := g.generationRequest(r, page)
	pr.UpdateOutput(fmt.Sprintf("Page %d: submitting generation", page.Number))

	id, err := g.Images.StartGeneration(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("starting generation: %w", err)
	}
	pr.UpdateOutput(fmt.Sprintf("Page %d: generation %s accepted, waiting", page.Number, id))

	gen, err := g.Poller.Wait(ctx, id, pr)
	if err != nil {
		return nil, err
	}

	url := gen.ImageURLs[0]
	pr.UpdateOutput(fmt.Sprintf("Page %d: downloading image", page.Number))
	data, err := g.Images.DownloadImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}

	asset := &PageAsset{
		Index:        i,
		Number:       page.Number,
		Caption:      FillName(page.Text, r.child),
		Prompt:       req.Prompt,
		GenerationID: id,
		ImageURL:     url,
		Image:        data,
	}
	if g.KeepImages {
		if asset.ImagePath, err = savePageImage(assetDir, page.Number, data); err != nil {
			return nil, err
		}
	}
	return asset, nil
}

// CreateBook generates the book, writes the PDF to BookPath and records it in
// the history store when one is configured.
func (g *Generator) CreateBook(ctx context.Context, req Request, progress Progressor) (*Result, error) {
	pr := orNull(progress)
	book, err := g.Generate(ctx, req, pr)
	if err != nil {
		return nil, err
	}

	path := BookPath(g.OutputDir, book.ChildName, book.StoryKey)
	pr.UpdateOutput(fmt.Sprintf("Assembling PDF %s", path))
	n, err := bookcompiler.Compile(book.compilerBook(), path)
	if err != nil {
		if errors.Is(err, bookcompiler.ErrOutput) {
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}
		return nil, fmt.Errorf("assembling book: %w", err)
	}
	if n != len(book.Pages) {
		return nil, fmt.Errorf("assembling book: wrote %d pages, expected %d", n, len(book.Pages))
	}

	res := &Result{PDFPath: path, Title: book.Title, PageCount: n}
	if g.KeepImages {
		res.AssetDir = AssetDir(g.OutputDir, book.ChildName, book.StoryKey)
	}
	if g.History != nil {
		rec, err := g.History.Save(ctx, history.Record{
			StoryKey:  book.StoryKey,
			Title:     book.Title,
			ChildName: book.ChildName,
			ModelKey:  book.ModelKey,
			PDFPath:   path,
			PageCount: n,
		})
		if err != nil {
			log.Printf("saving history for %s: %v", path, err)
		} else {
			res.HistoryID = rec.ID
		}
	}
	pr.UpdateOutput(fmt.Sprintf("Saved PDF: %s", path))
	return res, nil
}

func (b *Book) compilerBook() bookcompiler.Book {
	out := bookcompiler.Book{Title: b.Title, Author: b.ChildName}
	for _, p := range b.Pages {
		out.Pages = append(out.Pages, bookcompiler.Page{Number: p.Number, Caption: p.Caption, Image: p.Image})
	}
	return out
}
