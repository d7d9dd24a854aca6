package eval

import (
	"fmt"

	"github.com/quillkernel/quill/wire"
)

// TextRenderer renders every value through fmt.Sprint into a plain text
// bundle. It is the default renderer; language kernels with richer display
// types inject their own.
type TextRenderer struct{}

// Render implements Renderer.
func (TextRenderer) Render(v any) (wire.MIMEBundle, error) {
	if v == nil {
		return nil, nil
	}
	if d, ok := v.(*DisplayValue); ok {
		return d.Data, nil
	}
	return wire.TextBundle(fmt.Sprint(v)), nil
}
