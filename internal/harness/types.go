package harness

// TraceEvent is one recorded invocation, read back from the store.
// Args, ArgsAfter and Result are JSON text as stored.
type TraceEvent struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Lambda    string `json:"lambda"`
	Args      string `json:"args"`
	ArgsAfter string `json:"args_after"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
}

// Listing is the disassembly of a compiled lambda.
type Listing struct {
	Lambda  string   `json:"lambda"`
	Opcodes []string `json:"opcodes"`
	Text    string   `json:"text"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool `json:"pass"`

	// Trace contains all recorded invocations in seq order.
	Trace []TraceEvent `json:"trace"`

	// Listings holds one entry per compiled lambda, in compile order.
	Listings []Listing `json:"listings"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State holds the final exported value of every slot.
	State map[string]any `json:"state,omitempty"`

	// Divergences lists, per lambda, the steps where the compiled program
	// and the reference evaluator disagreed.
	Divergences map[string][]string `json:"divergences,omitempty"`

	// compileErrs records compile failures by lambda for compile_error.
	compileErrs map[string]error
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Listings:    []Listing{},
		Errors:      []string{},
		State:       make(map[string]any),
		Divergences: make(map[string][]string),
		compileErrs: make(map[string]error),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// listing returns the listing for lambda, if it was compiled.
func (r *Result) listing(lambda string) (Listing, bool) {
	for _, l := range r.Listings {
		if l.Lambda == lambda {
			return l, true
		}
	}
	return Listing{}, false
}
