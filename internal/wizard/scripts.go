package wizard

// Page scripts. Each is a function expression taking at most one argument so both
// browser engines can run it unchanged.

// jsOverlayClear reports whether every overlay selector is absent or hidden.
const jsOverlayClear = `(sels) => {
	const hidden = (el) => !el || el.style.display === 'none' ||
		getComputedStyle(el).display === 'none' || getComputedStyle(el).visibility === 'hidden';
	return sels.every((s) => hidden(document.querySelector(s)));
}`

// jsForceHide calls the site's own unblock helpers and then hides the overlays by style.
const jsForceHide = `(sels) => {
	try { if (typeof hideMaskFrame === 'function') hideMaskFrame(); } catch (e) {}
	try { if (window.$ && $.unblockUI) $.unblockUI(); } catch (e) {}
	for (const s of sels) {
		const el = document.querySelector(s);
		if (el) {
			el.style.display = 'none';
			el.style.visibility = 'hidden';
			el.style.zIndex = '0';
		}
	}
	return true;
}`

// jsObserve samples everything the classifier needs in one round trip.
const jsObserve = `(p) => {
	const visible = (sel) => {
		if (!sel) return false;
		const el = document.querySelector(sel);
		if (!el) return false;
		const st = getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden' && el.getClientRects().length > 0;
	};
	const hidden = (el) => !el || el.style.display === 'none' ||
		getComputedStyle(el).display === 'none' || getComputedStyle(el).visibility === 'hidden';
	const overlay = (p.overlays || []).some((s) => !hidden(document.querySelector(s)));
	let ready = visible(p.ready);
	if (!ready && p.readyPattern) {
		ready = new RegExp(p.readyPattern).test(document.body ? document.body.innerText : '');
	}
	const error = visible(p.error);
	let errorText = '';
	if (error) {
		errorText = (document.querySelector(p.error).innerText || '').replace(/\s+/g, ' ').trim();
	}
	return { overlay, step1: visible(p.step1), ready, error, errorText };
}`

// jsDispatchInput fires the events the site listens for after a programmatic fill.
const jsDispatchInput = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
	return true;
}`

// jsSetDate writes the hidden date input and re-runs the site's train type check.
const jsSetDate = `(p) => {
	const el = document.querySelector(p.sel);
	if (!el) return false;
	el.value = p.value;
	el.setAttribute('value', p.value);
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	if (window.BookingS1 && BookingS1.typesoftrainCheck) {
		try { BookingS1.typesoftrainCheck(); } catch (e) {}
	}
	return true;
}`

// jsReadOffers scrapes the step 2 result rows.
const jsReadOffers = `(p) => {
	const rows = Array.from(document.querySelectorAll(p.row));
	return rows.map((row) => {
		const radio = row.querySelector(p.radio);
		const attr = (name) => (radio && radio.getAttribute(name)) || '';
		const disc = Array.from(row.querySelectorAll(p.discount))
			.map((e) => (e.innerText || '').trim()).filter(Boolean).join(' ');
		return {
			date: attr('querydeparturedate'),
			code: attr('querycode'),
			departure: attr('querydeparture'),
			arrival: attr('queryarrival'),
			estimated: attr('queryestimatedtime'),
			discount: disc,
			selected: !!(radio && radio.checked) || row.classList.contains('active'),
		};
	});
}`

// jsClickButtonByText is the fallback when a button's selector does not match.
const jsClickButtonByText = `(text) => {
	const els = Array.from(document.querySelectorAll('button, input[type=submit], input[type=button], a.btn'));
	const el = els.find((e) => ((e.innerText || e.value || '').indexOf(text) >= 0));
	if (!el) return false;
	el.click();
	return true;
}`

// jsInnerHTML returns the first match's innerHTML, or "".
const jsInnerHTML = `(sel) => {
	const el = document.querySelector(sel);
	return el ? el.innerHTML : '';
}`

// jsBodyMatches tests the page text against a pattern.
const jsBodyMatches = `(pattern) => new RegExp(pattern).test(document.body ? document.body.innerText : '')`

// jsScrollIntoView brings an element on screen before a click.
const jsScrollIntoView = `(sel) => {
	const el = document.querySelector(sel);
	if (el) el.scrollIntoView({ block: 'center' });
	return !!el;
}`
