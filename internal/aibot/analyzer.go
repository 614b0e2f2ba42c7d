package aibot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

var issueCategories = []string{"diseases", "pests", "deficiencies", "environmental", "symptoms"}

var actionCategories = []string{"immediate", "short_term", "long_term", "monitoring"}

// Terms whose presence raises confidence in an analysis.
var specificPlantTerms = []string{
	"chlorosis", "necrosis", "aphid", "scale", "mite", "fungal", "bacterial",
	"overwatering", "under watering", "nitrogen", "phosphorus", "potassium",
	"root rot", "leaf spot", "powdery mildew", "yellowing", "browning",
}

// AnalysisResult is the structured outcome of a photo diagnosis.
type AnalysisResult struct {
	Text       string
	Issues     map[string][]string
	Actions    map[string][]string
	Confidence float64
}

// PlantContext carries what is known about the plant into the prompt.
type PlantContext struct {
	Species     string
	Location    string
	KnownIssues string
}

// Analyzer turns a plant photo into a structured diagnosis: a vision
// call for the free-text assessment, then JSON extraction calls for
// issues and actions.
type Analyzer struct {
	completer Completer
}

func NewAnalyzer(completer Completer) *Analyzer {
	return &Analyzer{completer: completer}
}

func (a *Analyzer) AnalyzeImage(ctx context.Context, imageData []byte, mimeType, userContext string, plant *PlantContext) (*AnalysisResult, error) {
	prompt := buildAnalysisPrompt(userContext, plant)

	text, err := a.completer.CompleteVision(ctx, prompt, imageData, mimeType)
	if err != nil {
		return nil, fmt.Errorf("vision analysis failed: %w", err)
	}

	issues := a.extractIssues(ctx, text)
	actions := a.extractActions(ctx, text, issues)

	return &AnalysisResult{
		Text:       text,
		Issues:     issues,
		Actions:    actions,
		Confidence: ConfidenceScore(text, issues),
	}, nil
}

func buildAnalysisPrompt(userContext string, plant *PlantContext) string {
	var contextParts []string
	if userContext != "" {
		contextParts = append(contextParts, "User's concern: "+userContext)
	}
	if plant != nil {
		if plant.Species != "" {
			contextParts = append(contextParts, "Plant species: "+plant.Species)
		}
		if plant.Location != "" {
			contextParts = append(contextParts, "Location: "+plant.Location)
		}
		if plant.KnownIssues != "" {
			contextParts = append(contextParts, "Known issues: "+plant.KnownIssues)
		}
	}

	contextText := "No additional context provided."
	if len(contextParts) > 0 {
		contextText = strings.Join(contextParts, "\n")
	}

	return fmt.Sprintf(`Analyze this plant image for health issues and provide a detailed diagnosis.

Context:
%s

Please provide:
1. Overall plant health assessment
2. Specific issues identified (diseases, pests, deficiencies, environmental stress)
3. Detailed description of symptoms visible in the image
4. Likely causes of any problems
5. Recommended immediate and long-term treatments
6. Prevention strategies
7. Prognosis and recovery timeline

Be specific and practical in your recommendations. If you're uncertain about something, mention it.`, contextText)
}

// extractIssues asks the model to categorize issues as JSON. Extraction
// failures degrade to empty categories rather than failing the diagnosis.
func (a *Analyzer) extractIssues(ctx context.Context, analysisText string) map[string][]string {
	prompt := fmt.Sprintf(`Extract and categorize plant health issues from the following analysis text.
Return a JSON object with these categories:
- diseases: specific plant diseases mentioned
- pests: insects or pest problems identified
- deficiencies: nutrient or environmental deficiencies
- environmental: environmental stress factors
- symptoms: visible symptoms described

Analysis text: %s

Return only valid JSON. If no issues in a category, use empty list.`, analysisText)

	response, err := a.completer.Complete(ctx, "You are an expert plant pathologist. Extract plant health issues and return only valid JSON.", prompt)
	if err != nil {
		return emptyCategories(issueCategories)
	}

	return parseCategorized(response, issueCategories)
}

func (a *Analyzer) extractActions(ctx context.Context, analysisText string, issues map[string][]string) map[string][]string {
	issuesJSON, _ := json.Marshal(issues)

	prompt := fmt.Sprintf(`Based on the following plant analysis and identified issues, extract recommended actions.
Return a JSON object with these categories:
- immediate: actions to take right away
- short_term: actions for next 1-2 weeks
- long_term: actions for ongoing care
- monitoring: what to watch for

Analysis: %s

Identified Issues: %s

Return only valid JSON with actionable recommendations.`, analysisText, issuesJSON)

	response, err := a.completer.Complete(ctx, "You are an expert plant care advisor. Provide practical, actionable recommendations in JSON format.", prompt)
	if err != nil {
		return emptyCategories(actionCategories)
	}

	return parseCategorized(response, actionCategories)
}

// parseCategorized decodes the model's JSON, tolerating markdown fences,
// and normalizes it to exactly the expected categories.
func parseCategorized(response string, categories []string) map[string][]string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var raw map[string][]string
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return emptyCategories(categories)
	}

	result := make(map[string][]string, len(categories))
	for _, category := range categories {
		if entries, ok := raw[category]; ok && entries != nil {
			result[category] = entries
		} else {
			result[category] = []string{}
		}
	}
	return result
}

func emptyCategories(categories []string) map[string][]string {
	result := make(map[string][]string, len(categories))
	for _, category := range categories {
		result[category] = []string{}
	}
	return result
}

// ConfidenceScore rates an analysis between 0.1 and 1.0 from its word
// count, how many issues were found, and how many specific plant terms
// it uses.
func ConfidenceScore(analysisText string, issues map[string][]string) float64 {
	var factors []float64

	wordCount := len(strings.Fields(analysisText))
	switch {
	case wordCount > 100:
		factors = append(factors, 0.8)
	case wordCount > 50:
		factors = append(factors, 0.6)
	default:
		factors = append(factors, 0.4)
	}

	totalIssues := 0
	for _, entries := range issues {
		totalIssues += len(entries)
	}
	switch {
	case totalIssues == 0:
		factors = append(factors, 0.3)
	case totalIssues <= 2:
		factors = append(factors, 0.7)
	case totalIssues <= 5:
		factors = append(factors, 0.8)
	default:
		// A crowded issue list suggests an uncertain model.
		factors = append(factors, 0.6)
	}

	lowered := strings.ToLower(analysisText)
	termMatches := 0
	for _, term := range specificPlantTerms {
		if strings.Contains(lowered, term) {
			termMatches++
		}
	}
	switch {
	case termMatches >= 3:
		factors = append(factors, 0.9)
	case termMatches >= 1:
		factors = append(factors, 0.7)
	default:
		factors = append(factors, 0.5)
	}

	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	avg := sum / float64(len(factors))

	if avg < 0.1 {
		return 0.1
	}
	if avg > 1.0 {
		return 1.0
	}
	return avg
}
