package registry

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	ctxlog "github.com/pagegraph/pagegraph/internal/ctxlog"
	pagetree "github.com/pagegraph/pagegraph/internal/pagetree"
)

// manifestFile is the top-level structure of a pagegraph.hcl manifest.
type manifestFile struct {
	Common       *commonBlock     `hcl:"common,block"`
	ContentTypes []componentBlock `hcl:"content_type,block"`
	Pages        []componentBlock `hcl:"page,block"`
	Parts        []componentBlock `hcl:"part,block"`
	Layouts      []componentBlock `hcl:"layout,block"`
}

type commonBlock struct {
	Query string `hcl:"query"`
}

type componentBlock struct {
	Key   string `hcl:"key,label"`
	Query string `hcl:"query,optional"`
	View  bool   `hcl:"view,optional"`
}

// LoadManifest parses an HCL manifest and registers its entries. Manifest
// entries carry query text and view capability only; processors and variable
// resolvers are registered in code before Freeze.
func LoadManifest(ctx context.Context, filePath string, reg *Registry) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("loading registry manifest", "path", filePath)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse manifest %s: %s", filePath, diags.Error())
	}
	var manifest manifestFile
	diags = gohcl.DecodeBody(file.Body, nil, &manifest)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode manifest %s: %s", filePath, diags.Error())
	}

	if manifest.Common != nil {
		if manifest.Common.Query == "" {
			return fmt.Errorf("manifest %s: common block requires a non-empty query", filePath)
		}
		reg.SetCommonQuery(&QueryContract{Query: manifest.Common.Query})
	}
	for _, block := range manifest.ContentTypes {
		reg.RegisterContentType(block.Key, entryFromBlock(block))
	}
	for _, block := range manifest.Pages {
		reg.RegisterPage(block.Key, entryFromBlock(block))
	}
	for _, block := range manifest.Parts {
		reg.RegisterComponent(pagetree.KindPart, block.Key, entryFromBlock(block))
	}
	for _, block := range manifest.Layouts {
		reg.RegisterComponent(pagetree.KindLayout, block.Key, entryFromBlock(block))
	}

	logger.Debug("registry manifest loaded",
		"content_types", len(manifest.ContentTypes),
		"pages", len(manifest.Pages),
		"parts", len(manifest.Parts),
		"layouts", len(manifest.Layouts))
	return nil
}

func entryFromBlock(block componentBlock) *Entry {
	e := &Entry{View: block.View}
	if block.Query != "" {
		e.Query = &QueryContract{Query: block.Query}
	}
	return e
}
