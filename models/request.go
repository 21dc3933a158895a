package models

// RenderRequest is the query string of GET /api/v1/render.
type RenderRequest struct {
	// Full disables truncation of the returned HTML ("full=1").
	Full bool `form:"full"`

	// Pretty re-indents the markup one element per line ("pretty=1").
	Pretty bool `form:"pretty"`

	// Format selects the body format.
	// Allowed: "html" (default), "markdown".
	Format string `form:"format" binding:"omitempty,oneof=html markdown"`

	// Selector narrows the output to the matching elements, e.g.
	// "ul[class*=contribution]".
	Selector string `form:"selector"`
}

// Defaults applies default values to unset fields.
func (r *RenderRequest) Defaults() {
	if r.Format == "" {
		r.Format = "html"
	}
}
