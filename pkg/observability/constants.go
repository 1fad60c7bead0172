package observability

const (
	AttrMode            = "inference.mode"
	AttrToolName        = "tool.name"
	AttrCollection      = "rag.collection"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrLLMStream       = "llm.stream"
	AttrErrorType       = "error.type"
	AttrHTTPMethod      = "http.method"
	AttrHTTPPath        = "http.path"
	AttrHTTPStatusCode  = "http.status_code"

	SpanInference     = "inference.request"
	SpanLLMGenerate   = "inference.llm_generate"
	SpanToolExecution = "inference.tool_execution"
	SpanRetrieval     = "inference.retrieval"
	SpanHTTPRequest   = "http.request"

	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"

	DefaultServiceName  = "textserver"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"

	instrumentationName = "github.com/dieharders/ai-text-server"
)
