package twogis

// Structural markers of the review list. The presence check and the
// extractor share reviewTextSelector: if the site renames that class both
// report zero and a card with reviews looks empty.
const (
	reviewTextSelector   = "a._1msln3t"
	reviewDateSelector   = `div._a5f6uz,span._a5f6uz,time._a5f6uz,[class*="_a5f6uz"],[class*="date"],time`
	reviewRatingSelector = `div._1fkin5c,[class*="rating"],[class*="stars"]`
	reviewerNameSelector = "span._16s5yj36"
	reviewerStatSelector = "span._89b5km"
)

// reviewsTabXPath finds the "Reviews" tab in the listing's tab bar.
const reviewsTabXPath = `//div[@role='tab' and contains(normalize-space(),'Отзывы')]`

// loadMorePattern matches "show more"/"load more"/"next" labels in the
// languages the site renders.
const loadMorePattern = `(показать|ещ[её]|больше|дал[её]е|more|show|load|next|further|yana|ko'proq)`

// Every script below is a function expression called through
// Automation.RunScript. Scripts that need the review container read it from
// window.__reviewsContainer, which findContainerScript sets.

// findContainerScript locates the scrollable review list: first by walking
// up from a review node, then by scanning all shadow roots for an
// overflowing element, finally falling back to the document scroller.
const findContainerScript = `function(textSel) {
  function scrollable(el) {
    try {
      var st = getComputedStyle(el);
      return (st.overflowY === 'auto' || st.overflowY === 'scroll') && el.scrollHeight - el.clientHeight > 60;
    } catch (e) { return false; }
  }
  function roots() {
    var out = [document];
    var tw = document.createTreeWalker(document, NodeFilter.SHOW_ELEMENT);
    for (var n = tw.currentNode; n; n = tw.nextNode()) { if (n.shadowRoot) out.push(n.shadowRoot); }
    return out;
  }
  var container = null, how = 'document';
  try {
    var first = document.querySelector(textSel);
    for (var p = first, i = 0; p && i < 12; i++) {
      p = p.parentElement;
      if (!p) break;
      var r = p.getBoundingClientRect();
      if (r && r.height > 150 && r.width > 300 && scrollable(p)) { container = p; how = 'ancestor'; break; }
    }
  } catch (e) {}
  if (!container) {
    var rs = roots();
    outer: for (var k = 0; k < rs.length; k++) {
      var cands = rs[k].querySelectorAll('[style*="overflow"],[class*="scroll"],[class*="review"]');
      for (var j = 0; j < cands.length; j++) {
        if (scrollable(cands[j])) { container = cands[j]; how = 'scan'; break outer; }
      }
    }
  }
  if (!container) container = document.scrollingElement || document.body;
  window.__reviewsContainer = container;
  try { container.focus(); } catch (e) {}
  return how;
}`

// countScript is the cheap presence probe.
const countScript = `function(textSel) {
  return document.querySelectorAll(textSel).length;
}`

// extractScript returns every rendered review across the document and all
// shadow roots. For each text node it walks up to 12 ancestors to find the
// sibling date, rating bar, author and author-stat nodes. Width is returned
// raw; decoding happens in Go.
const extractScript = `function(sel) {
  var items = [];
  var roots = [document];
  var tw = document.createTreeWalker(document, NodeFilter.SHOW_ELEMENT);
  for (var n = tw.currentNode; n; n = tw.nextNode()) { if (n.shadowRoot) roots.push(n.shadowRoot); }
  roots.forEach(function(root) {
    root.querySelectorAll(sel.text).forEach(function(el) {
      var box = el, dateEl = null, rateEl = null, nameEl = null, statEl = null;
      for (var step = 0; step < 12 && box; step++) {
        dateEl = dateEl || box.querySelector(sel.date);
        rateEl = rateEl || box.querySelector(sel.rating);
        nameEl = nameEl || box.querySelector(sel.name);
        statEl = statEl || box.querySelector(sel.stat);
        if (dateEl && rateEl && nameEl && statEl) break;
        box = box.parentElement;
      }
      var text = (el.textContent || '').trim();
      if (!text) return;
      var width = '';
      if (rateEl) {
        try {
          var cs = getComputedStyle(rateEl);
          width = (cs && cs.width) ? cs.width : (rateEl.getAttribute('style') || '');
        } catch (e) { width = rateEl.getAttribute('style') || ''; }
      }
      items.push({
        text: text,
        date: dateEl ? (dateEl.textContent || '').trim() : '',
        width: width,
        name: nameEl ? (nameEl.getAttribute('title') || nameEl.textContent || '').trim() : '',
        reviewCount: statEl ? (statEl.textContent || '').trim() : ''
      });
    });
  });
  return items;
}`

// scrollScript scrolls the container to its bottom and reports whether
// anything moved.
const scrollScript = `function() {
  var c = window.__reviewsContainer || document.scrollingElement || document.body;
  var moved = false;
  try {
    var beforeTop = c.scrollTop, beforeHeight = c.scrollHeight;
    c.scrollTop = c.scrollHeight;
    c.dispatchEvent(new Event('scroll', {bubbles: true, cancelable: true}));
    c.dispatchEvent(new WheelEvent('wheel', {deltaY: c.clientHeight, bubbles: true, cancelable: true}));
    moved = c.scrollTop !== beforeTop || c.scrollHeight > beforeHeight;
  } catch (e) {}
  return moved;
}`

// clickMoreScript clicks the first visible "load more" control positioned in
// the lower part of the container, so header buttons are never hit. Review
// text anchors and long labels are never treated as controls.
const clickMoreScript = `function(pattern, textSel) {
  var rx = new RegExp(pattern, 'i');
  var c = window.__reviewsContainer;
  function lowEnough(el) {
    try {
      var r = el.getBoundingClientRect();
      var h = (c && c.getBoundingClientRect ? c.getBoundingClientRect().height : window.innerHeight) || 0;
      return r.top > h * 0.45;
    } catch (e) { return true; }
  }
  var roots = [document];
  var tw = document.createTreeWalker(document, NodeFilter.SHOW_ELEMENT);
  for (var n = tw.currentNode; n; n = tw.nextNode()) { if (n.shadowRoot) roots.push(n.shadowRoot); }
  for (var i = 0; i < roots.length; i++) {
    var nodes = roots[i].querySelectorAll('button, a, div[role="button"]');
    for (var j = 0; j < nodes.length; j++) {
      var b = nodes[j];
      try {
        if (textSel && (b.matches(textSel) || b.querySelector(textSel))) continue;
        var label = ((b.textContent || '') + ' ' + (b.getAttribute('aria-label') || '')).trim().toLowerCase();
        if (label.length > 40 || !rx.test(label) || !lowEnough(b)) continue;
        b.click();
        return true;
      } catch (e) {}
    }
  }
  return false;
}`

// jiggleScript nudges the window up and back down.
const jiggleScript = `function() {
  window.scrollBy(0, -100);
  setTimeout(function() { window.scrollBy(0, 100); }, 100);
  return true;
}`
