package pipeline

import (
	"fmt"

	"findoc-backend/internal/documents"
)

// Context is the record of one run: the immutable query and document plus every completed
// stage's output. It is owned by a single run and grows only by appending.
type Context struct {
	query    string
	document documents.Handle
	order    []string
	outputs  map[string]string
}

// NewContext starts an empty record for one run.
func NewContext(query string, doc documents.Handle) *Context {
	return &Context{query: query, document: doc, outputs: make(map[string]string)}
}

func (c *Context) Query() string              { return c.query }
func (c *Context) Document() documents.Handle { return c.document }

// Output returns a completed stage's text.
func (c *Context) Output(stage string) (string, bool) {
	out, ok := c.outputs[stage]
	return out, ok
}

// Completed lists stage names in completion order.
func (c *Context) Completed() []string {
	return append([]string(nil), c.order...)
}

// record appends a stage's output. A stage can be recorded once.
func (c *Context) record(stage, output string) error {
	if _, exists := c.outputs[stage]; exists {
		return fmt.Errorf("stage %q already recorded", stage)
	}
	c.outputs[stage] = output
	c.order = append(c.order, stage)
	return nil
}

// prior copies the outputs of the named stages.
func (c *Context) prior(names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if v, ok := c.outputs[n]; ok {
			out[n] = v
		}
	}
	return out
}
