package domain

// Bounds is the bounding box of a located element in page pixels.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is the locator's description of a matched element.
type Element struct {
	Selector   string            `json:"selector,omitempty"`
	Text       string            `json:"text"`
	Bounds     Bounds            `json:"bounds"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Visible reports whether the element occupies a non-empty area.
func (e *Element) Visible() bool {
	return e != nil && e.Bounds.Width > 0 && e.Bounds.Height > 0
}

// Enabled reports whether the element is enabled. Elements are enabled unless
// they are explicitly disabled.
func (e *Element) Enabled() bool {
	if e == nil {
		return false
	}
	return !e.flag("disabled") && !e.flag("aria-disabled")
}

// Selected reports whether the element is selected or checked.
func (e *Element) Selected() bool {
	if e == nil {
		return false
	}
	return e.flag("selected") || e.flag("checked") || e.flag("aria-selected") || e.flag("aria-checked")
}

// flag treats an attribute as a boolean: present and not "false".
func (e *Element) flag(name string) bool {
	v, ok := e.Attributes[name]
	return ok && v != "false"
}
