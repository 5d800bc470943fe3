// Package ir defines the immutable, compiled intermediate representation
// consumed by the runtime (spec §3, §4.4, §4.6). A Repository is built once
// per deployed repository snapshot and treated as read-only shared state
// for the lifetime of the process (spec §5).
package ir

import (
	"time"

	"github.com/corintai/corint/internal/artifact"
	"github.com/corintai/corint/internal/expr"
)

// RuleIR is a compiled, scoring atomic unit (spec §3).
type RuleIR struct {
	ID          string
	Name        string
	Description string
	When        *expr.Condition
	Score       int
	Metadata    map[string]any
	FeatureRefs []string
	ListRefs    []string
}

// ConclusionArmIR is one compiled arm of a ruleset `conclusion:` block.
type ConclusionArmIR struct {
	When      *expr.Condition
	Signal    string
	Reason    *expr.Template
	Terminate bool
	Default   bool
}

// RulesetIR is a compiled, flattened (post-`extends`) ordered rule list plus
// its conclusion chain.
type RulesetIR struct {
	ID          string
	Name        string
	Description string
	Rules       []*RuleIR
	Conclusion  []ConclusionArmIR
	Metadata    map[string]any
}

// RouteIR is one compiled router-step route.
type RouteIR struct {
	When *expr.Condition
	Next string
}

// StepIR is a compiled pipeline step (tagged by Type).
type StepIR struct {
	ID   string
	Type artifact.StepType
	When *expr.Condition
	Next string

	RulesetID string

	Routes  []RouteIR
	Default string

	APIID       string
	Endpoint    string
	Params      map[string]*expr.Template
	Output      string
	Timeout     time.Duration
	OnErrorFallback any
	HasOnError  bool

	ServiceID string

	SubPipelineID string
}

// PipelineIR is a compiled DAG of steps plus the authoritative `decision`
// arms.
type PipelineIR struct {
	ID          string
	Name        string
	Description string
	When        *expr.Condition
	Entry       string
	Steps       map[string]*StepIR
	Decision    []DecisionArmIR
}

// DecisionArmIR is one compiled arm of a pipeline `decision:` block.
type DecisionArmIR struct {
	When    *expr.Condition
	Result  string
	Reason  *expr.Template
	Actions []string
	Default bool
}

// RegistryEntryIR is one compiled, ordered registry route.
type RegistryEntryIR struct {
	PipelineID string
	When       *expr.Condition
}

// RegistryIR is the compiled, ordered routing table.
type RegistryIR struct {
	Entries []RegistryEntryIR
}

// FeatureIR is a compiled value producer (aggregation | lookup | expression).
type FeatureIR struct {
	ID   string
	Kind artifact.FeatureKind

	// aggregation
	Method                 string
	DatasourceID           string
	Entity                 string
	Dimension              string
	DimensionValueTemplate *expr.Template
	Field                  string
	Window                 string
	When                   *expr.Condition
	Percentile             *float64
	TimestampColumn        string

	// lookup
	KeyTemplate *expr.Template
	Fallback    any

	// expression
	Arithmetic *expr.Arithmetic
	DependsOn  []string
}

// ListIR is a compiled named membership set.
type ListIR struct {
	ID          string
	Backend     string
	Entries     []string
	DatasourceID string
	Key         string
	Query       string
	Path        string
	EntriesPath string
}

// EndpointIR is a compiled named endpoint of an API or Service.
type EndpointIR struct {
	PathTemplate string
	Method       string
	Params       map[string]*expr.Template
	RequestBody  *expr.Template
	ResponseMap  map[string]string
	Fallback     any
	HasFallback  bool
	Timeout      time.Duration
	Topic        string
	Sync         bool
}

// APIIR is a compiled external HTTP call shape.
type APIIR struct {
	ID              string
	BaseURLTemplate *expr.Template
	AuthType        string
	AuthKey         string
	AuthValueTemplate *expr.Template
	Timeout         time.Duration
	Endpoints       map[string]*EndpointIR
}

// ServiceIR is a compiled internal transport shape.
type ServiceIR struct {
	ID              string
	Kind            artifact.ServiceKind
	AddressTemplate *expr.Template
	BrokerTemplate  *expr.Template
	Timeout         time.Duration
	Endpoints       map[string]*EndpointIR
}

// Repository is the full immutable IR graph for one compiled snapshot.
type Repository struct {
	Rules        map[string]*RuleIR
	Rulesets     map[string]*RulesetIR
	Pipelines    map[string]*PipelineIR
	Registry     *RegistryIR
	Features     map[string]*FeatureIR
	FeatureOrder []string // topological order, lower rank first
	Lists        map[string]*ListIR
	APIs         map[string]*APIIR
	Services     map[string]*ServiceIR
}
