package gemini

import (
	"encoding/json"
	"strings"

	"github.com/deskpilot/deskpilot/runtime/providers"
)

const modelPrefix = "models/"

// buildSetupMessage builds the BidiGenerateContentSetup message sent as the
// first frame of every session.
func buildSetupMessage(cfg *providers.LiveConfig) map[string]any {
	setupContent := map[string]any{
		"model":            getModelPath(cfg.Model),
		"generationConfig": buildGenerationConfig(cfg),
	}

	addRealtimeInputConfig(setupContent, cfg.TurnCoverage)
	addCompressionConfig(setupContent, cfg.CompressionTriggerTokens, cfg.CompressionTargetTokens)
	addTranscriptionConfig(setupContent, cfg)
	addSystemInstruction(setupContent, cfg.SystemInstruction)
	addToolsConfig(setupContent, cfg)

	return map[string]any{
		"setup": setupContent,
	}
}

// getModelPath ensures model is in the models/{model} form
func getModelPath(model string) string {
	if model == "" {
		return providers.DefaultModel
	}
	if !strings.HasPrefix(model, modelPrefix) {
		return modelPrefix + model
	}
	return model
}

func buildGenerationConfig(cfg *providers.LiveConfig) map[string]any {
	genConfig := map[string]any{
		"responseModalities": cfg.ResponseModalities,
	}
	if cfg.MediaResolution != "" {
		genConfig["mediaResolution"] = cfg.MediaResolution
	}
	if cfg.Voice != "" && sliceContains(cfg.ResponseModalities, providers.ModalityAudio) {
		genConfig["speechConfig"] = map[string]any{
			"voiceConfig": map[string]any{
				"prebuiltVoiceConfig": map[string]any{
					"voiceName": cfg.Voice,
				},
			},
		}
	}
	return genConfig
}

func addRealtimeInputConfig(setupContent map[string]any, coverage string) {
	if coverage == "" {
		return
	}
	setupContent["realtimeInputConfig"] = map[string]any{
		"turnCoverage": coverage,
	}
}

func addCompressionConfig(setupContent map[string]any, trigger, target int) {
	if trigger <= 0 {
		return
	}
	setupContent["contextWindowCompression"] = map[string]any{
		"triggerTokens": trigger,
		"slidingWindow": map[string]any{
			"targetTokens": target,
		},
	}
}

func addTranscriptionConfig(setupContent map[string]any, cfg *providers.LiveConfig) {
	if cfg.InputTranscription {
		setupContent["inputAudioTranscription"] = map[string]any{}
	}
	if cfg.OutputTranscription {
		setupContent["outputAudioTranscription"] = map[string]any{}
	}
}

func addSystemInstruction(setupContent map[string]any, instruction string) {
	if instruction == "" {
		return
	}
	setupContent["systemInstruction"] = map[string]any{
		"parts": []map[string]any{
			{"text": instruction},
		},
	}
}

func addToolsConfig(setupContent map[string]any, cfg *providers.LiveConfig) {
	var tools []map[string]any

	if cfg.GoogleSearch {
		tools = append(tools, map[string]any{"googleSearch": map[string]any{}})
	}

	if len(cfg.Tools) > 0 {
		functionDeclarations := make([]map[string]any, len(cfg.Tools))
		for i, fd := range cfg.Tools {
			functionDeclarations[i] = buildFunctionDeclaration(fd)
		}
		tools = append(tools, map[string]any{"functionDeclarations": functionDeclarations})
	}

	if len(tools) > 0 {
		setupContent["tools"] = tools
	}
}

func buildFunctionDeclaration(fd providers.FunctionDeclaration) map[string]any {
	decl := map[string]any{
		"name":        fd.Name,
		"description": fd.Description,
	}
	if len(fd.Parameters) > 0 {
		decl["parameters"] = json.RawMessage(fd.Parameters)
	}
	return decl
}

func sliceContains(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
