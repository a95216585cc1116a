package collect

// pageExtract is the JSON document produced by one in-page evaluation of the
// primary URL. Field shapes must stay in sync with pageExtractJS.
type pageExtract struct {
	Title           string   `json:"title"`
	MetaDescription string   `json:"metaDescription"`
	Viewport        bool     `json:"viewport"`
	Canonical       string   `json:"canonical"`
	RobotsMeta      string   `json:"robotsMeta"`
	HeadingCounts   [6]int   `json:"headingCounts"` // h1..h6
	FirstH1         string   `json:"firstH1"`
	ImageCount      int      `json:"imageCount"`
	ImagesWithAlt   int      `json:"imagesWithAlt"`
	WordCount       int      `json:"wordCount"`
	SchemaTypes     []string `json:"schemaTypes"`
	Hrefs           []string `json:"hrefs"`
}

// perfExtract carries navigation timings and web-vitals approximations, all
// in milliseconds.
type perfExtract struct {
	LoadTimeMs         float64 `json:"loadTimeMs"`
	DOMContentLoadedMs float64 `json:"domContentLoadedMs"`
	FirstPaintMs       float64 `json:"firstPaintMs"`
	TransferSize       int64   `json:"transferSize"`
	LCPMs              float64 `json:"lcpMs"`
	CLS                float64 `json:"cls"`
}

// serpExtract is the raw organic-result list pulled from a search results
// page.
type serpExtract struct {
	Results []serpResult `json:"results"`
}

type serpResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// competitorExtract is the minimal head-tag read taken from a rival's page.
type competitorExtract struct {
	Title           string `json:"title"`
	MetaDescription string `json:"metaDescription"`
}

const pageExtractJS = `(() => {
	const meta = (name) => {
		const el = document.querySelector('meta[name="' + name + '" i]');
		return el ? (el.getAttribute('content') || '').trim() : '';
	};

	const counts = [];
	let firstH1 = '';
	for (let i = 1; i <= 6; i++) {
		const els = document.querySelectorAll('h' + i);
		counts.push(els.length);
		if (i === 1 && els.length > 0) {
			firstH1 = (els[0].textContent || '').trim();
		}
	}

	const imgs = Array.from(document.querySelectorAll('img'));
	const withAlt = imgs.filter(i => (i.getAttribute('alt') || '').trim() !== '').length;

	const canonicalEl = document.querySelector('link[rel="canonical"]');

	const schemaTypes = [];
	for (const s of document.querySelectorAll('script[type="application/ld+json"]')) {
		try {
			let doc = JSON.parse(s.textContent);
			if (!Array.isArray(doc)) doc = [doc];
			for (const d of doc) {
				if (d && d['@type']) {
					const t = d['@type'];
					if (Array.isArray(t)) schemaTypes.push(...t.map(String));
					else schemaTypes.push(String(t));
				}
			}
		} catch (e) {}
	}

	const bodyText = document.body ? (document.body.innerText || '') : '';
	const words = bodyText.split(/\s+/).filter(w => w.length > 0);

	const hrefs = Array.from(document.querySelectorAll('a[href]'))
		.map(a => a.getAttribute('href'))
		.filter(h => h);

	return {
		title: (document.title || '').trim(),
		metaDescription: meta('description'),
		viewport: document.querySelector('meta[name="viewport"]') !== null,
		canonical: canonicalEl ? (canonicalEl.getAttribute('href') || '').trim() : '',
		robotsMeta: meta('robots'),
		headingCounts: counts,
		firstH1: firstH1,
		imageCount: imgs.length,
		imagesWithAlt: withAlt,
		wordCount: words.length,
		schemaTypes: schemaTypes,
		hrefs: hrefs,
	};
})()`

const perfExtractJS = `(() => {
	const out = {loadTimeMs: 0, domContentLoadedMs: 0, firstPaintMs: 0, transferSize: 0, lcpMs: 0, cls: 0};

	const nav = performance.getEntriesByType('navigation')[0];
	if (nav) {
		out.loadTimeMs = nav.loadEventEnd > 0 ? nav.loadEventEnd : nav.domComplete;
		out.domContentLoadedMs = nav.domContentLoadedEventEnd;
		out.transferSize = nav.transferSize || 0;
	} else if (performance.timing && performance.timing.navigationStart > 0) {
		const t = performance.timing;
		if (t.loadEventEnd > 0) out.loadTimeMs = t.loadEventEnd - t.navigationStart;
		if (t.domContentLoadedEventEnd > 0) out.domContentLoadedMs = t.domContentLoadedEventEnd - t.navigationStart;
	}

	for (const e of performance.getEntriesByType('paint')) {
		if (e.name === 'first-contentful-paint') out.firstPaintMs = e.startTime;
	}

	try {
		const po = new PerformanceObserver(() => {});
		po.observe({type: 'largest-contentful-paint', buffered: true});
		const entries = po.takeRecords();
		if (entries.length > 0) out.lcpMs = entries[entries.length - 1].startTime;
		po.disconnect();
	} catch (e) {}

	try {
		const po = new PerformanceObserver(() => {});
		po.observe({type: 'layout-shift', buffered: true});
		for (const e of po.takeRecords()) {
			if (!e.hadRecentInput) out.cls += e.value;
		}
		po.disconnect();
	} catch (e) {}

	return out;
})()`

// serpExtractJS handles the DuckDuckGo HTML endpoint's result markup and
// falls back to a generic anchor scan for other templates.
const serpExtractJS = `(() => {
	const results = [];
	let anchors = Array.from(document.querySelectorAll('a.result__a'));
	if (anchors.length === 0) {
		anchors = Array.from(document.querySelectorAll('a[href^="http"], a[href^="//"]'))
			.filter(a => (a.textContent || '').trim().length > 10);
	}
	for (const a of anchors) {
		const container = a.closest('.result') || a.parentElement;
		let snippet = '';
		if (container) {
			const sn = container.querySelector('.result__snippet');
			if (sn) snippet = (sn.textContent || '').trim();
		}
		results.push({
			url: a.getAttribute('href') || '',
			title: (a.textContent || '').trim(),
			snippet: snippet,
		});
	}
	return {results: results};
})()`

const competitorExtractJS = `(() => {
	const el = document.querySelector('meta[name="description" i]');
	return {
		title: (document.title || '').trim(),
		metaDescription: el ? (el.getAttribute('content') || '').trim() : '',
	};
})()`
