package browser

// Page-side scripts. Each returns JSON.stringify(...) so results decode
// with encoding/json on the Go side.

// metricsJS reports the device pixel ratio and the CSS layout viewport.
const metricsJS = `() => JSON.stringify({
	dpr: window.devicePixelRatio || 1,
	w: document.documentElement.clientWidth || window.innerWidth,
	h: document.documentElement.clientHeight || window.innerHeight
})`

// themeSignalsJS collects the raw color-scheme signals. Argument: the list
// of dark marker class names.
const themeSignalsJS = `(darkClasses) => {
	const d = document.documentElement;
	const b = document.body;
	const rs = getComputedStyle(d);
	const bs = b ? getComputedStyle(b) : null;

	const hasClass = (el) => !!el && darkClasses.some(c => el.classList.contains(c));
	const darkAttr = ['data-theme', 'data-color-mode', 'data-bs-theme']
		.some(a => (d.getAttribute(a) || '').toLowerCase() === 'dark');

	const prop = (s, name) => !!s && s.getPropertyValue(name).trim() !== '';
	const darkProp = prop(rs, '--dark-mode') || prop(rs, '--is-dark') ||
		prop(bs, '--dark-mode') || prop(bs, '--is-dark');

	const transparent = (c) => !c || c === 'transparent' || c === 'rgba(0, 0, 0, 0)';
	const bg = bs && !transparent(bs.backgroundColor) ? bs.backgroundColor : rs.backgroundColor;
	const fg = bs && bs.color ? bs.color : rs.color;

	return JSON.stringify({
		dark_class: hasClass(d) || hasClass(b) || darkAttr,
		dark_property: darkProp,
		prefers_dark: window.matchMedia('(prefers-color-scheme: dark)').matches,
		background: bg || '',
		foreground: fg || ''
	});
}`

// textMetricsJS counts text-bearing elements and small text.
const textMetricsJS = `() => {
	const els = document.querySelectorAll('p, h1, h2, h3, h4, h5, h6, span, div, li, td, th, a, em, strong, b, i');
	let count = 0, small = 0, length = 0;
	for (const el of els) {
		const t = (el.textContent || '').trim();
		if (!t) continue;
		count++;
		length += t.length;
		if (parseFloat(getComputedStyle(el).fontSize) < 14) small++;
	}
	return JSON.stringify({
		text_elements: count,
		small_text: small,
		text_length: length,
		viewport: {
			w: document.documentElement.clientWidth || window.innerWidth,
			h: document.documentElement.clientHeight || window.innerHeight
		}
	});
}`

// lightOverrideCSS forces a light palette without CSS filters so text stays
// crisp.
const lightOverrideCSS = `
:root { color-scheme: light !important; }
html, body {
	background: #ffffff !important;
	color: #111827 !important;
	-webkit-font-smoothing: antialiased !important;
	text-rendering: optimizeLegibility !important;
}
html { filter: none !important; }
*, *::before, *::after { transition: none !important; }
img, video, canvas, svg, picture, iframe { filter: none !important; mix-blend-mode: normal !important; }
[data-theme], [data-color-mode], [class*="dark"], [class*="Dark"], [class*="night"] { color-scheme: light !important; }
:where(div, section, article, main, aside, header, footer, nav,
       p, span, li, ul, ol, a, h1, h2, h3, h4, h5, h6,
       table, tr, td, th, thead, tbody, tfoot,
       input, textarea, button, label, select,
       code, pre, blockquote, figure, figcaption) {
	color: #111827 !important;
	background-color: transparent !important;
}
a { color: #2563eb !important; }
`

// styleID identifies the injected light stylesheet.
const styleID = "framecap-light-override"

// applyLightJS strips dark markers, sets light hints and injects the
// stylesheet. Arguments: dark classes, stylesheet id, css. Returns the prior
// state needed by revertLightJS.
const applyLightJS = `(darkClasses, id, css) => {
	const d = document.documentElement;
	const b = document.body;
	const attrs = {};
	for (const a of Array.from(d.attributes)) attrs[a.name] = a.value;
	const prev = {
		html_class: d.className,
		body_class: b ? b.className : '',
		has_body: !!b,
		attrs: attrs
	};

	for (const c of darkClasses) {
		d.classList.remove(c);
		if (b) b.classList.remove(c);
	}
	d.setAttribute('data-theme', 'light');
	d.setAttribute('data-color-mode', 'light');
	d.style.colorScheme = 'light';

	const style = document.getElementById(id) || document.createElement('style');
	style.id = id;
	style.textContent = css;
	(document.head || d).appendChild(style);

	return JSON.stringify(prev);
}`

// revertLightJS removes the stylesheet and restores classes and root
// attributes exactly. Arguments: stylesheet id, prior state.
const revertLightJS = `(id, prev) => {
	const d = document.documentElement;
	const b = document.body;
	const style = document.getElementById(id);
	if (style) style.remove();

	d.className = prev.html_class;
	if (b && prev.has_body) b.className = prev.body_class;

	const keep = prev.attrs || {};
	for (const a of Array.from(d.attributes)) {
		if (!(a.name in keep)) d.removeAttribute(a.name);
	}
	for (const [k, v] of Object.entries(keep)) d.setAttribute(k, v);
	return true;
}`

// overlayID identifies the selection overlay element.
const overlayID = "framecap-selection"

// drawOverlayJS creates or moves the selection overlay. Arguments: id, rect,
// palette.
const drawOverlayJS = `(id, r, p) => {
	let el = document.getElementById(id);
	if (!el) {
		el = document.createElement('div');
		el.id = id;
		el.setAttribute('data-framecap', '');
		el.style.position = 'fixed';
		el.style.zIndex = '2147483647';
		el.style.pointerEvents = 'none';
		el.style.boxSizing = 'border-box';
		document.documentElement.appendChild(el);
	}
	el.style.left = r.x + 'px';
	el.style.top = r.y + 'px';
	el.style.width = r.width + 'px';
	el.style.height = r.height + 'px';
	el.style.border = p.border_width + 'px ' + (p.dashed ? 'dashed ' : 'solid ') + p.border;
	el.style.background = p.fill;
	el.style.boxShadow = p.glow || 'none';
	el.dataset.colorScheme = p.name;
	return true;
}`

// clearOverlayJS removes the selection overlay. Argument: id.
const clearOverlayJS = `(id) => {
	const el = document.getElementById(id);
	if (el) el.remove();
	return true;
}`

// watchMutationsJS installs a MutationObserver on <html> and <body> that
// queues class and style changes. Idempotent.
const watchMutationsJS = `() => {
	if (window.__framecapObserver) return true;
	window.__framecapMutations = [];
	const obs = new MutationObserver((list) => {
		for (const m of list) {
			if (m.type !== 'attributes') continue;
			if (m.target.id === 'framecap-selection') continue;
			window.__framecapMutations.push({
				target: m.target === document.body ? 'body' : 'html',
				name: m.attributeName
			});
		}
	});
	obs.observe(document.documentElement, { attributes: true, attributeFilter: ['class', 'style'] });
	if (document.body) obs.observe(document.body, { attributes: true, attributeFilter: ['class', 'style'] });
	window.__framecapObserver = obs;
	return true;
}`

// drainMutationsJS returns and clears the queued mutations.
const drainMutationsJS = `() => {
	const q = window.__framecapMutations || [];
	window.__framecapMutations = [];
	return JSON.stringify(q);
}`

// unwatchMutationsJS disconnects the observer.
const unwatchMutationsJS = `() => {
	if (window.__framecapObserver) window.__framecapObserver.disconnect();
	delete window.__framecapObserver;
	delete window.__framecapMutations;
	return true;
}`
