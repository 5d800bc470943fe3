// Package artifact holds the untyped-but-typed-by-kind syntax tree produced
// by parsing repository YAML files (spec §4.1). Expression and template
// strings are kept as raw strings here; the expr package compiles them in a
// later pass.
package artifact

// Kind discriminates the top-level YAML key of a single artifact file.
type Kind string

const (
	KindRule     Kind = "rule"
	KindRuleset  Kind = "ruleset"
	KindPipeline Kind = "pipeline"
	KindRegistry Kind = "registry"
	KindFeatures Kind = "features"
	KindLists    Kind = "lists"
	KindAPIs     Kind = "apis"
	KindServices Kind = "services"
)

// Import is the optional leading YAML document in an artifact file,
// separated from the body by a `---` document marker.
type Import struct {
	Rules     []string `yaml:"rules"`
	Rulesets  []string `yaml:"rulesets"`
	Pipelines []string `yaml:"pipelines"`
}

// Rule is the raw shape of a `rule:` artifact.
type Rule struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	When        any            `yaml:"when"`
	Score       int            `yaml:"score"`
	Metadata    map[string]any `yaml:"metadata"`

	SourcePath string `yaml:"-"`
}

// ConclusionArm is one ordered arm of a ruleset `conclusion:` block.
type ConclusionArm struct {
	When      any    `yaml:"when"`
	Signal    string `yaml:"signal"`
	Reason    string `yaml:"reason"`
	Terminate bool   `yaml:"terminate"`
	Default   bool   `yaml:"default"`
}

// Ruleset is the raw shape of a `ruleset:` artifact.
type Ruleset struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Extends     string          `yaml:"extends"`
	Rules       []string        `yaml:"rules"`
	Conclusion  []ConclusionArm `yaml:"conclusion"`
	Metadata    map[string]any  `yaml:"metadata"`

	SourcePath string `yaml:"-"`
}

// StepType enumerates the five pipeline step variants.
type StepType string

const (
	StepRuleset  StepType = "ruleset"
	StepRouter   StepType = "router"
	StepAPI      StepType = "api"
	StepService  StepType = "service"
	StepPipeline StepType = "pipeline"
)

// Route is one entry of a router step's `routes:` list.
type Route struct {
	When any    `yaml:"when"`
	Next string `yaml:"next"`
}

// OnError describes the fallback policy attached to an api/service step.
type OnError struct {
	Fallback any `yaml:"fallback"`
}

// Step is the raw shape of one entry in a pipeline's `steps:` map.
type Step struct {
	Type StepType `yaml:"type"`
	When any      `yaml:"when"`
	Next string   `yaml:"next"`

	// ruleset step
	Ruleset string `yaml:"ruleset"`

	// router step
	Routes  []Route `yaml:"routes"`
	Default string  `yaml:"default"`

	// api step
	API      string         `yaml:"api"`
	Endpoint string         `yaml:"endpoint"`
	Params   map[string]any `yaml:"params"`
	Output   string         `yaml:"output"`
	Timeout  string         `yaml:"timeout"`
	OnError  *OnError       `yaml:"on_error"`

	// service step
	Service string `yaml:"service"`

	// pipeline step (sub-pipeline invocation)
	Pipeline string `yaml:"pipeline"`
}

// DecisionArm is one ordered arm of a pipeline `decision:` block. Distinct
// from ConclusionArm: a pipeline yields a Result plus optional Actions,
// never a Terminate flag (termination is a ruleset-level concept only).
type DecisionArm struct {
	When    any      `yaml:"when"`
	Result  string   `yaml:"result"`
	Reason  string   `yaml:"reason"`
	Actions []string `yaml:"actions"`
	Default bool     `yaml:"default"`
}

// Pipeline is the raw shape of a `pipeline:` artifact.
type Pipeline struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	When        any             `yaml:"when"`
	Entry       string          `yaml:"entry"`
	Steps       map[string]Step `yaml:"steps"`
	Decision    []DecisionArm   `yaml:"decision"`

	SourcePath string `yaml:"-"`
}

// RegistryEntry is one ordered entry of the top-level registry.
type RegistryEntry struct {
	Pipeline string `yaml:"pipeline"`
	When     any    `yaml:"when"`
}

// Registry is the raw shape of the top-level `registry:` artifact.
type Registry struct {
	Entries []RegistryEntry `yaml:"entries"`

	SourcePath string `yaml:"-"`
}

// FeatureKind enumerates the three feature variants.
type FeatureKind string

const (
	FeatureAggregation FeatureKind = "aggregation"
	FeatureLookup      FeatureKind = "lookup"
	FeatureExpression  FeatureKind = "expression"
)

// Feature is the raw shape of one entry in a `features:` artifact.
type Feature struct {
	ID   string      `yaml:"id"`
	Kind FeatureKind `yaml:"kind"`

	// aggregation
	Method               string `yaml:"method"`
	Datasource           string `yaml:"datasource"`
	Entity               string `yaml:"entity"`
	Dimension            string `yaml:"dimension"`
	DimensionValue       string `yaml:"dimension_value"`
	Field                string `yaml:"field"`
	Window               string `yaml:"window"`
	When                 any    `yaml:"when"`
	Percentile           *float64 `yaml:"percentile"`
	TimestampColumn      string `yaml:"timestamp_column"`

	// lookup
	KeyTemplate string `yaml:"key_template"`
	Fallback    any    `yaml:"fallback"`

	// expression
	Expression string `yaml:"expression"`

	SourcePath string `yaml:"-"`
}

// List is the raw shape of one entry in a `lists:` artifact.
type List struct {
	ID          string   `yaml:"id"`
	Backend     string   `yaml:"backend"` // static | redis_set | sql | json_file
	Entries     []string `yaml:"entries"`
	Datasource  string   `yaml:"datasource"`
	Key         string   `yaml:"key"`
	Query       string   `yaml:"query"`
	Path        string   `yaml:"path"`
	EntriesPath string   `yaml:"entries_path"`

	SourcePath string `yaml:"-"`
}

// Auth describes how an API endpoint authenticates.
type Auth struct {
	Type  string `yaml:"type"`
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Endpoint is one named endpoint of an api or service artifact.
type Endpoint struct {
	Path            string            `yaml:"path"`
	Method          string            `yaml:"method"`
	Params          map[string]string `yaml:"params"`
	RequestBody     string            `yaml:"request_body"`
	ResponseMap     map[string]string `yaml:"response_map"`
	Fallback        any               `yaml:"fallback"`
	Timeout         string            `yaml:"timeout"`
	Topic           string            `yaml:"topic"`
	Sync            bool              `yaml:"sync"`
}

// API is the raw shape of one entry in an `apis:` artifact.
type API struct {
	ID        string              `yaml:"id"`
	BaseURL   string              `yaml:"base_url"`
	Auth      *Auth               `yaml:"auth"`
	Timeout   string              `yaml:"timeout"`
	Endpoints map[string]Endpoint `yaml:"endpoints"`

	SourcePath string `yaml:"-"`
}

// ServiceKind enumerates the internal-transport variants.
type ServiceKind string

const (
	ServiceHTTP  ServiceKind = "http_service"
	ServiceGRPC  ServiceKind = "grpc_service"
	ServiceMQ    ServiceKind = "message_queue"
)

// Service is the raw shape of one entry in a `services:` artifact.
type Service struct {
	ID        string              `yaml:"id"`
	Kind      ServiceKind         `yaml:"kind"`
	Address   string              `yaml:"address"`
	Broker    string              `yaml:"broker"`
	Timeout   string              `yaml:"timeout"`
	Endpoints map[string]Endpoint `yaml:"endpoints"`

	SourcePath string `yaml:"-"`
}
