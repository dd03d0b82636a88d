package capture

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

const injectStyleJS = `function(id, css) {
	const old = document.getElementById(id);
	if (old) old.remove();
	const s = document.createElement('style');
	s.id = id;
	s.textContent = css;
	(document.head || document.documentElement).appendChild(s);
	return true;
}`

const removeStyleJS = `function(id) {
	const s = document.getElementById(id);
	if (!s) return false;
	s.remove();
	return true;
}`

// InjectStyle adds a <style id=id> element holding css to the document,
// replacing any earlier one with the same id.
func InjectStyle(ctx context.Context, id, css string) error {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(injectStyleJS, id, css), &ok)); err != nil {
		return fmt.Errorf("capture: injecting style: %w", err)
	}
	return nil
}

// RemoveStyle deletes the <style> element with the given id. It reports
// whether one was present.
func RemoveStyle(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(removeStyleJS, id), &ok)); err != nil {
		return false, fmt.Errorf("capture: removing style: %w", err)
	}
	return ok, nil
}
