package llms

import (
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
	"github.com/dieharders/ai-text-server-sub000/pkg/prompt"
)

// InitOptions are fixed when a model is loaded.
type InitOptions struct {
	NCtx       int   `json:"n_ctx,omitempty"`
	Seed       int   `json:"seed,omitempty"`
	NGPULayers int   `json:"n_gpu_layers,omitempty"`
	NThreads   int   `json:"n_threads,omitempty"`
	NBatch     int   `json:"n_batch,omitempty"`
	UseMlock   bool  `json:"use_mlock,omitempty"`
	UseMMap    *bool `json:"use_mmap,omitempty"`

	// ChatFormat flattens chat history into a raw prompt instead of using
	// the engine's chat template.
	ChatFormat *prompt.ChatFormat `json:"chat_format,omitempty"`
}

func (o InitOptions) options() map[string]any {
	opts := map[string]any{}
	if o.NCtx > 0 {
		opts["num_ctx"] = o.NCtx
	}
	if o.Seed != 0 {
		opts["seed"] = o.Seed
	}
	if o.NGPULayers != 0 {
		opts["num_gpu"] = o.NGPULayers
	}
	if o.NThreads > 0 {
		opts["num_thread"] = o.NThreads
	}
	if o.NBatch > 0 {
		opts["num_batch"] = o.NBatch
	}
	if o.UseMlock {
		opts["use_mlock"] = true
	}
	if o.UseMMap != nil {
		opts["use_mmap"] = *o.UseMMap
	}
	return opts
}

// generationOptions layers per-call sampling options over the load-time
// options. A zero NCtx keeps the loaded window.
func generationOptions(init InitOptions, g inference.GenerationOptions) map[string]any {
	opts := init.options()
	opts["temperature"] = g.Temperature
	if g.TopK > 0 {
		opts["top_k"] = g.TopK
	}
	if g.TopP > 0 {
		opts["top_p"] = g.TopP
	}
	if g.MinP > 0 {
		opts["min_p"] = g.MinP
	}
	if g.RepeatPenalty > 0 {
		opts["repeat_penalty"] = g.RepeatPenalty
	}
	if g.PresencePenalty != 0 {
		opts["presence_penalty"] = g.PresencePenalty
	}
	if g.FrequencyPenalty != 0 {
		opts["frequency_penalty"] = g.FrequencyPenalty
	}
	if g.MirostatTau > 0 {
		opts["mirostat_tau"] = g.MirostatTau
	}
	if len(g.Stop) > 0 {
		opts["stop"] = g.Stop
	}
	if g.Seed != 0 {
		opts["seed"] = g.Seed
	}
	if g.MaxTokens > 0 {
		opts["num_predict"] = g.MaxTokens
	}
	if g.NCtx > 0 {
		opts["num_ctx"] = g.NCtx
	}
	return opts
}
