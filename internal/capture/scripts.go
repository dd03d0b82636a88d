package capture

import (
	"encoding/json"
	"strings"
)

// call renders a JavaScript expression invoking fn with JSON-encoded args.
func call(fn string, args ...any) string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(fn)
	b.WriteString(")(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		enc, err := json.Marshal(a)
		if err != nil {
			enc = []byte("null")
		}
		b.Write(enc)
	}
	b.WriteString(")")
	return b.String()
}

const existsJS = `function(id) {
	return document.getElementById(id) !== null;
}`

const resetScrollJS = `function(id) {
	window.scrollTo(0, 0);
	const el = document.getElementById(id);
	if (!el) return false;
	el.scrollTop = 0;
	el.scrollLeft = 0;
	return true;
}`

// waitImagesJS resolves once every image under the element has loaded,
// failed, or run out of time; it yields how many had to be waited on.
const waitImagesJS = `function(id, timeoutMs) {
	const el = document.getElementById(id);
	if (!el) return Promise.resolve(0);
	const pending = Array.from(el.querySelectorAll('img')).filter(img => !img.complete);
	return Promise.all(pending.map(img => new Promise(resolve => {
		img.addEventListener('load', resolve, {once: true});
		img.addEventListener('error', resolve, {once: true});
		setTimeout(resolve, timeoutMs);
	}))).then(() => pending.length);
}`

const countJS = `function(id, selector) {
	const el = document.getElementById(id);
	if (!el) return 0;
	try {
		return el.querySelectorAll(selector).length;
	} catch (e) {
		return 0;
	}
}`

const forceLayoutJS = `function(id) {
	const el = document.getElementById(id);
	return el ? el.offsetHeight : 0;
}`

const predicateJS = `function(expr) {
	try {
		return !!(0, eval)(expr);
	} catch (e) {
		return false;
	}
}`

const boundsJS = `function(id) {
	const el = document.getElementById(id);
	if (!el) return {found: false};
	const r = el.getBoundingClientRect();
	return {
		found: true,
		x: r.left + window.scrollX,
		y: r.top + window.scrollY,
		width: Math.max(el.scrollWidth, r.width),
		height: Math.max(el.scrollHeight, r.height)
	};
}`

// snapshotJS clones the element without attaching the clone anywhere.
// Canvases are swapped for images first so clone and live indexes line up.
// The clone is wrapped in bare copies of its ancestors, keeping only id and
// class, so descendant selectors and inherited styles still match.
const snapshotJS = `function(id, opts) {
	const el = document.getElementById(id);
	if (!el) return {found: false};
	const clone = el.cloneNode(true);

	const liveCanvases = el.querySelectorAll('canvas');
	const cloneCanvases = clone.querySelectorAll('canvas');
	liveCanvases.forEach((c, i) => {
		const copy = cloneCanvases[i];
		if (!copy) return;
		const img = document.createElement('img');
		try {
			const w = Math.max(1, Math.round(c.width * opts.canvasScale));
			const h = Math.max(1, Math.round(c.height * opts.canvasScale));
			const tmp = document.createElement('canvas');
			tmp.width = w;
			tmp.height = h;
			tmp.getContext('2d').drawImage(c, 0, 0, w, h);
			img.src = tmp.toDataURL('image/png');
		} catch (e) {
			return;
		}
		img.className = c.className;
		img.style.width = c.clientWidth + 'px';
		img.style.height = c.clientHeight + 'px';
		copy.replaceWith(img);
	});

	const liveFrames = el.querySelectorAll('iframe');
	clone.querySelectorAll('iframe').forEach((f, i) => {
		const src = liveFrames[i] || f;
		const box = document.createElement('div');
		box.className = 'briefexport-placeholder';
		box.style.width = src.offsetWidth + 'px';
		box.style.height = src.offsetHeight + 'px';
		const label = document.createElement('p');
		label.textContent = opts.placeholder;
		box.appendChild(label);
		f.replaceWith(box);
	});

	if (opts.nonPrintable) {
		try {
			clone.querySelectorAll(opts.nonPrintable).forEach(n => n.remove());
		} catch (e) {}
	}

	let root = clone;
	for (let a = el.parentElement; a && a !== document.body && a !== document.documentElement; a = a.parentElement) {
		const tag = /^(P|TABLE|THEAD|TBODY|TFOOT|TR|TD|TH|CAPTION|BUTTON|SELECT|OPTION)$/.test(a.tagName) ? 'div' : a.tagName.toLowerCase();
		const w = document.createElement(tag);
		if (a.id) w.id = a.id;
		if (typeof a.className === 'string' && a.className) w.className = a.className;
		w.classList.add('briefexport-ancestor');
		w.appendChild(root);
		root = w;
	}

	const styles = [];
	const links = [];
	for (const sheet of Array.from(document.styleSheets)) {
		try {
			styles.push(Array.from(sheet.cssRules).map(r => r.cssText).join('\n'));
		} catch (e) {
			if (sheet.href) links.push(sheet.href);
		}
	}

	return {
		found: true,
		html: root.outerHTML,
		styles: styles,
		links: links,
		baseURL: document.baseURI,
		title: document.title,
		htmlClass: document.documentElement.className,
		bodyClass: document.body ? document.body.className : '',
		width: Math.ceil(el.scrollWidth),
		height: Math.ceil(el.scrollHeight)
	};
}`
