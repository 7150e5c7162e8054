package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Debug affordance element ids. Both elements live outside the page's own
// DOM flow and are hidden while screenshots are captured, so the model never
// sees them.
const (
	overlayID = "webpilot-debug-overlay"
	markerID  = "webpilot-click-marker"
)

const overlayMaxChars = 800
const markerLabelMaxChars = 24

const injectOverlayJS = `(() => {
	let el = document.getElementById('` + overlayID + `');
	if (el) return true;
	el = document.createElement('div');
	el.id = '` + overlayID + `';
	el.style.position = 'fixed';
	el.style.bottom = '8px';
	el.style.right = '8px';
	el.style.maxWidth = '42vw';
	el.style.padding = '10px 12px';
	el.style.borderRadius = '10px';
	el.style.font = '12px/1.45 "Fira Code", Menlo, Consolas, monospace';
	el.style.color = '#e9f5ff';
	el.style.background = 'linear-gradient(145deg, rgba(12,17,28,0.92), rgba(20,32,52,0.9))';
	el.style.border = '1px solid rgba(255,255,255,0.14)';
	el.style.zIndex = '2147483647';
	el.style.pointerEvents = 'none';
	el.style.boxShadow = '0 8px 20px rgba(0,0,0,0.45)';
	el.style.whiteSpace = 'pre-wrap';
	el.style.backdropFilter = 'blur(6px)';
	el.style.maxHeight = '42vh';
	el.style.overflow = 'hidden';
	el.style.textAlign = 'left';
	el.textContent = 'webpilot debug overlay ready.';
	document.body.appendChild(el);
	return true;
})()`

const injectMarkerJS = `(() => {
	let el = document.getElementById('` + markerID + `');
	if (el) return true;
	el = document.createElement('div');
	el.id = '` + markerID + `';
	el.style.position = 'fixed';
	el.style.width = '30px';
	el.style.height = '30px';
	el.style.borderRadius = '50%';
	el.style.border = '2px solid #5bd1ff';
	el.style.boxShadow = '0 0 12px rgba(91,209,255,0.65)';
	el.style.background = 'rgba(91,209,255,0.15)';
	el.style.zIndex = '2147483647';
	el.style.pointerEvents = 'none';
	el.style.transform = 'translate(-50%, -50%)';
	el.style.display = 'none';
	const label = document.createElement('div');
	label.id = '` + markerID + `-label';
	label.style.position = 'absolute';
	label.style.bottom = '-14px';
	label.style.left = '50%';
	label.style.transform = 'translateX(-50%)';
	label.style.font = '11px/1.2 "Fira Code", Menlo, Consolas, monospace';
	label.style.padding = '2px 6px';
	label.style.borderRadius = '6px';
	label.style.background = 'rgba(0,0,0,0.7)';
	label.style.color = '#e9f5ff';
	label.style.whiteSpace = 'nowrap';
	label.style.boxShadow = '0 2px 6px rgba(0,0,0,0.35)';
	label.textContent = 'click';
	el.appendChild(label);
	document.body.appendChild(el);
	return true;
})()`

// UpdateOverlay replaces the debug overlay text, injecting the overlay if
// the page navigated since it was last created. No-op when disabled.
func (c *Controller) UpdateOverlay(ctx context.Context, text string) error {
	if !c.cfg.ShowOverlay {
		return nil
	}
	if len(text) > overlayMaxChars {
		text = text[:overlayMaxChars]
	}
	c.lastOverlayText = text

	if err := c.ensureAnnotation(ctx, injectOverlayJS, &c.overlayCreated); err != nil {
		return err
	}

	quoted, err := jsoniter.MarshalToString(text)
	if err != nil {
		return fmt.Errorf("encode overlay text: %w", err)
	}
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById('%s');
		if (!el) return false;
		el.textContent = %s;
		return true;
	})()`, overlayID, quoted)

	var updated bool
	if err := c.run(ctx, chromedp.Evaluate(js, &updated)); err != nil {
		return fmt.Errorf("update overlay: %w", err)
	}
	return nil
}

// ShowClickMarker flashes a transient marker at viewport coordinates. The
// marker hides itself after a second. No-op when disabled.
func (c *Controller) ShowClickMarker(ctx context.Context, x, y float64, label string) error {
	if !c.cfg.ShowClickMarkers {
		return nil
	}
	if len(label) > markerLabelMaxChars {
		label = label[:markerLabelMaxChars]
	}

	if err := c.ensureAnnotation(ctx, injectMarkerJS, &c.markerCreated); err != nil {
		return err
	}

	quoted, err := jsoniter.MarshalToString(label)
	if err != nil {
		return fmt.Errorf("encode marker label: %w", err)
	}
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById('%s');
		if (!el) return;
		const labelEl = el.querySelector('#%s-label');
		if (labelEl) labelEl.textContent = %s;
		el.style.left = '%.1fpx';
		el.style.top = '%.1fpx';
		el.style.display = 'block';
		setTimeout(() => {
			const el2 = document.getElementById('%s');
			if (el2) el2.style.display = 'none';
		}, 1000);
	})()`, markerID, markerID, quoted, x, y, markerID)

	if err := c.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("show click marker: %w", err)
	}
	return nil
}

// ensureAnnotation injects the element if a navigation wiped it.
func (c *Controller) ensureAnnotation(ctx context.Context, injectJS string, created *bool) error {
	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(injectJS, &ok)); err != nil {
		return fmt.Errorf("inject annotation: %w", err)
	}
	*created = *created || ok
	return nil
}

// restoreOverlayText reapplies the last overlay text after navigation.
func (c *Controller) restoreOverlayText(ctx context.Context) {
	if !c.cfg.ShowOverlay || c.lastOverlayText == "" {
		return
	}
	if err := c.UpdateOverlay(ctx, c.lastOverlayText); err != nil {
		c.logger.Debug("Overlay restore failed", zap.Error(err))
	}
}

// hideAnnotation hides the element before a screenshot, reporting whether it
// was visible so the caller can restore it.
func (c *Controller) hideAnnotation(ctx context.Context, id string) bool {
	switch id {
	case overlayID:
		if !c.cfg.ShowOverlay || !c.overlayCreated {
			return false
		}
	case markerID:
		if !c.cfg.ShowClickMarkers || !c.markerCreated {
			return false
		}
	}

	js := fmt.Sprintf(`(() => {
		const el = document.getElementById('%s');
		if (!el) return false;
		const wasVisible = el.style.display !== 'none';
		el.style.display = 'none';
		return wasVisible;
	})()`, id)

	var wasVisible bool
	if err := c.run(ctx, chromedp.Evaluate(js, &wasVisible)); err != nil {
		c.logger.Warn("Failed to hide annotation before screenshot",
			zap.String("id", id), zap.Error(err))
		return false
	}
	return wasVisible
}

// showAnnotation restores a previously hidden element after a screenshot.
func (c *Controller) showAnnotation(ctx context.Context, id string) {
	js := fmt.Sprintf(`(() => {
		const el = document.getElementById('%s');
		if (el) el.style.display = 'block';
	})()`, id)
	if err := c.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		c.logger.Warn("Failed to restore annotation after screenshot",
			zap.String("id", id), zap.Error(err))
	}
}
