package interaction

// interactionScript installs window- and element-level listeners that
// report every tracked interaction to the Go-side binding named by its
// one argument. It is evaluated once per Start call, mirroring the way
// the mutation bridge installs its MutationObserver.
const interactionScript = `(bindingName) => {
  const report = (obj) => window[bindingName](JSON.stringify(obj));

  const pathOf = (node) => {
    const path = [];
    let n = node;
    while (n && n.parentNode) {
      const siblings = Array.from(n.parentNode.childNodes);
      path.unshift(siblings.indexOf(n));
      n = n.parentNode;
    }
    return path;
  };

  window.addEventListener('mousemove', (e) => {
    report({type: 'mousemove', x: e.clientX, y: e.clientY});
  }, true);

  window.addEventListener('click', (e) => {
    report({type: 'click', x: e.clientX, y: e.clientY});
  }, true);

  window.addEventListener('keydown', (e) => {
    report({type: 'key', code: e.code, alt: e.altKey, ctrl: e.ctrlKey, meta: e.metaKey, shift: e.shiftKey});
  }, true);

  window.addEventListener('resize', () => {
    report({type: 'resize', w: window.innerWidth, h: window.innerHeight});
  }, true);

  window.addEventListener('scroll', () => {
    report({type: 'scroll', x: window.scrollX, y: window.scrollY});
  }, true);

  window.addEventListener('focus', () => report({type: 'winfocus'}));
  window.addEventListener('blur', () => report({type: 'winblur'}));

  document.addEventListener('scroll', (e) => {
    if (e.target === document) return;
    report({type: 'elscroll', path: pathOf(e.target), scrollLeft: e.target.scrollLeft, scrollTop: e.target.scrollTop});
  }, true);

  document.addEventListener('focusin', (e) => {
    report({type: 'elfocus', path: pathOf(e.target)});
  }, true);

  document.addEventListener('focusout', (e) => {
    report({type: 'elblur', path: pathOf(e.target)});
  }, true);

  document.addEventListener('selectionchange', () => {
    const sel = document.getSelection();
    if (!sel || sel.rangeCount === 0) return;
    const r = sel.getRangeAt(0);
    report({
      type: 'selection',
      startPath: pathOf(r.startContainer),
      startOffset: r.startOffset,
      endPath: pathOf(r.endContainer),
      endOffset: r.endOffset,
    });
  });
}`
