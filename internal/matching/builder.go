// Package matching provides the product-match task type: each input
// row describes a product from a source retailer plus five competitor
// domains, and the task asks the remote processor for an exact match of
// the product on each domain.
package matching

import (
	"fmt"

	"github.com/bulkrun/bulkrun/internal/batch"
)

// TaskName is the selector under which this builder is registered.
const TaskName = "product-match"

// mergeKeyColumn correlates a product row with its run and its result.
const mergeKeyColumn = "ManufacturerPartNumber"

// outputColumns are the structured output fields, one match per
// competitor domain, in column order.
var outputColumns = []string{"match_1", "match_2", "match_3", "match_4", "match_5"}

// competitorColumns name the input columns holding the target domains.
var competitorColumns = []string{"competitor1", "competitor2", "competitor3", "competitor4", "competitor5"}

// productFields are the row fields forwarded as the task input object.
var productFields = []string{
	"ManufacturerPartID",
	"SKU",
	"ManufacturerPartNumber",
	"OptionName",
	"UPC",
	"AdditionalUPC",
	"PrName",
	"ProductDescription",
	"MarketingCategory",
	"Class",
	"Manufacturer",
	"URL",
}

// Builder implements batch.TaskBuilder for product matching.
type Builder struct {
	processor  string
	sourceName string
}

// NewBuilder creates a product-match builder. processor selects the
// remote processor tier; sourceName is the human-readable name of the
// source retailer, referenced in prompt schema descriptions.
func NewBuilder(processor, sourceName string) *Builder {
	return &Builder{processor: processor, sourceName: sourceName}
}

// MergeKeyColumn implements batch.TaskBuilder.
func (b *Builder) MergeKeyColumn() string {
	return mergeKeyColumn
}

// OutputColumns implements batch.TaskBuilder.
func (b *Builder) OutputColumns() []string {
	return append([]string{}, outputColumns...)
}

// BuildInput implements batch.TaskBuilder. It forwards the product
// fields and competitor domains as the task input and declares the
// per-row input/output schemas, restricting sources to the row's
// competitor domains.
func (b *Builder) BuildInput(row map[string]string) (batch.RunInput, error) {
	if row[mergeKeyColumn] == "" {
		return batch.RunInput{}, fmt.Errorf("row has no %s value", mergeKeyColumn)
	}

	domains := make([]string, 0, len(competitorColumns))
	for _, col := range competitorColumns {
		domains = append(domains, row[col])
	}
	if len(domains) != len(outputColumns) {
		return batch.RunInput{}, fmt.Errorf("number of domains (%d) does not match number of output columns (%d)",
			len(domains), len(outputColumns))
	}

	input := make(map[string]any, len(productFields)+1)
	for _, f := range productFields {
		input[f] = row[f]
	}
	input["domains"] = domains

	return batch.RunInput{
		Input:     input,
		Processor: b.processor,
		TaskSpec:  b.taskSpec(domains),
		Metadata: map[string]string{
			"manufacturerPartId": row["ManufacturerPartID"],
			"taskType":           "match_search",
		},
		SourcePolicy: map[string]any{"include_domains": domains},
	}, nil
}

// taskSpec declares the input and output JSON schemas for one row's
// task. The output schema asks for one exact-match object per
// competitor domain.
func (b *Builder) taskSpec(domains []string) map[string]any {
	inputProps := map[string]any{}
	for _, f := range productFields {
		desc := ""
		switch f {
		case "ManufacturerPartID":
			desc = "Manufacturer part ID of the product to find matches for."
		case "SKU":
			desc = "SKU identifier of the product to find match for."
		case "ManufacturerPartNumber":
			desc = "Manufacturer part number (MPN) of the product to find matches for."
		case "UPC":
			desc = "The UPC of the product to find matches for."
		case "PrName":
			desc = "The name of the product to find matches for."
		case "ProductDescription":
			desc = "The description of the product to find matches for."
		case "MarketingCategory":
			desc = "The category of the product to find matches for."
		case "Class":
			desc = "The class of the product to find matches for."
		case "Manufacturer":
			desc = "Name of manufacturer of the product to find matches for."
		case "URL":
			desc = fmt.Sprintf(
				"The direct URL to the %s product page. Use this URL to first extract all the product details "+
					"including manufacturer, part number, product name, specifications, dimensions, weight, price, etc. "+
					"before matching.", b.sourceName)
		}
		inputProps[f] = map[string]any{"description": desc, "type": "string"}
	}

	outputProps := map[string]any{}
	for i, col := range outputColumns {
		domain := domains[i]
		outputProps[col] = map[string]any{
			"description": fmt.Sprintf("The exact match to the original product on %s.", domain),
			"type":        "object",
			"properties": map[string]any{
				"product_url": map[string]any{
					"description": fmt.Sprintf(
						"The direct URL of the matched %[1]s product page (must be from %[1]s). URL that is not from "+
							"%[1]s is invalid and not considered a match. Must be a valid URL that opens up to the "+
							"actual product page directly. If no match, return empty string.", domain),
					"type": "string",
				},
				"product_description": map[string]any{
					"description": fmt.Sprintf(
						"The description of the matched %s product page. If a description is not available, return "+
							"'Description unavailable.'. If no match, return empty string.", domain),
					"type": "string",
				},
				"product_price": map[string]any{
					"description": "The price of the matched product, including currency symbol (e.g., '$5.99'). " +
						"If unavailable, return 'Price Not Available'. If no match, return empty string.",
					"type": "string",
				},
				"product_in_stock": map[string]any{
					"description": "An indication whether the matched product is in-stock or not. If no match, return empty string.",
					"enum":        []string{"yes", "no", ""},
					"type":        "string",
				},
			},
		}
	}

	return map[string]any{
		"input_schema": map[string]any{
			"json_schema": map[string]any{
				"type":       "object",
				"required":   productFields,
				"properties": inputProps,
			},
		},
		"output_schema": map[string]any{
			"json_schema": map[string]any{
				"type":     "object",
				"required": outputColumns,
				"description": fmt.Sprintf(
					"An exact match to the given product on target domains: %v. The match must have the same make "+
						"and model -- i.e. the same manufacturer name and other details.\n"+
						"Matching Criteria (in order of priority):\n"+
						"1. **UPC (Universal Product Code) - Exact match** 2. **Manufacturer Part Number (MPN) - "+
						"Exact match** 3. **Manufacturer Name** - Must match or be a known alias/brand variation "+
						"4. **Product Title/Option Name** - High similarity 5. **Product Class/Category** - Must be "+
						"consistent 6. **Visual Match** (if available) - Product images should be visually identical",
					domains),
				"properties": outputProps,
			},
		},
	}
}
