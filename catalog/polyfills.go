package catalog

// Sources of the inline polyfills.  Every polyfill only installs itself if the
// browser lacks the feature.
const (
	polyfillCustomElements = `if (!window.customElements) {
  (function () {
    var defs = {}, waiting = {}, upgrading = null;
    var NativeHTMLElement = window.HTMLElement;
    var walk = function (root, fn) {
      if (!root || root.nodeType !== 1) return;
      fn(root);
      var all = root.querySelectorAll("*");
      for (var i = 0; i < all.length; i++) fn(all[i]);
    };
    var observed = function (def) {
      return def.ctor.observedAttributes || [];
    };
    var upgrade = function (el) {
      var def = defs[el.localName];
      if (!def || el.__ceUpgraded) return;
      el.__ceUpgraded = true;
      Object.setPrototypeOf(el, def.ctor.prototype);
      upgrading = el;
      try { new def.ctor(); } finally { upgrading = null; }
      if (el.attributeChangedCallback) {
        observed(def).forEach(function (a) {
          if (el.hasAttribute(a)) el.attributeChangedCallback(a, null, el.getAttribute(a));
        });
      }
      if (el.isConnected !== false && el.connectedCallback) el.connectedCallback();
    };
    var HTMLElement = function HTMLElement() {
      var el = upgrading;
      upgrading = null;
      if (el) return el;
      for (var name in defs) {
        if (defs[name].ctor === this.constructor) {
          el = document.createElement(name);
          el.__ceUpgraded = true;
          Object.setPrototypeOf(el, this.constructor.prototype);
          return el;
        }
      }
      throw new TypeError("Illegal constructor");
    };
    HTMLElement.prototype = NativeHTMLElement.prototype;
    Object.setPrototypeOf(HTMLElement, NativeHTMLElement);
    window.HTMLElement = HTMLElement;

    new MutationObserver(function (records) {
      records.forEach(function (r) {
        if (r.type === "attributes") {
          var el = r.target, def = defs[el.localName];
          if (def && el.__ceUpgraded && el.attributeChangedCallback &&
              observed(def).indexOf(r.attributeName) >= 0) {
            el.attributeChangedCallback(r.attributeName, r.oldValue, el.getAttribute(r.attributeName));
          }
          return;
        }
        Array.prototype.forEach.call(r.addedNodes, function (n) {
          walk(n, function (el) {
            if (!el.__ceUpgraded) upgrade(el);
            else if (el.connectedCallback) el.connectedCallback();
          });
        });
        Array.prototype.forEach.call(r.removedNodes, function (n) {
          walk(n, function (el) {
            if (el.__ceUpgraded && el.disconnectedCallback) el.disconnectedCallback();
          });
        });
      });
    }).observe(document, { childList: true, subtree: true, attributes: true, attributeOldValue: true });

    window.customElements = {
      define: function (name, ctor) {
        if (defs[name]) throw new Error("customElements: " + name + " is already defined");
        defs[name] = { ctor: ctor };
        walk(document.documentElement, function (el) {
          if (el.localName === name) upgrade(el);
        });
        (waiting[name] || []).forEach(function (resolve) { resolve(ctor); });
        delete waiting[name];
      },
      get: function (name) {
        return defs[name] && defs[name].ctor;
      },
      whenDefined: function (name) {
        if (defs[name]) return Promise.resolve(defs[name].ctor);
        return new Promise(function (resolve) {
          (waiting[name] = waiting[name] || []).push(resolve);
        });
      },
      upgrade: function (root) {
        walk(root, upgrade);
      }
    };
  })();
}`

	polyfillQueueMicrotask = `if (typeof window.queueMicrotask !== "function") {
  window.queueMicrotask = function (cb) {
    Promise.resolve().then(cb).catch(function (e) {
      setTimeout(function () { throw e; }, 0);
    });
  };
}`

	polyfillToggleAttribute = `if (typeof Element.prototype.toggleAttribute !== "function") {
  Element.prototype.toggleAttribute = function (name, force) {
    var has = this.hasAttribute(name);
    var want = force === undefined ? !has : !!force;
    if (want && !has) this.setAttribute(name, "");
    if (!want && has) this.removeAttribute(name);
    return want;
  };
}`

	polyfillArrayFlat = `if (typeof Array.prototype.flat !== "function") {
  var flatten = function (arr, depth, out) {
    for (var i = 0; i < arr.length; i++) {
      if (!(i in arr)) continue;
      if (depth > 0 && Array.isArray(arr[i])) flatten(arr[i], depth - 1, out);
      else out.push(arr[i]);
    }
    return out;
  };
  Object.defineProperty(Array.prototype, "flat", {
    configurable: true,
    writable: true,
    value: function () {
      var depth = arguments[0] === undefined ? 1 : Math.floor(Number(arguments[0]));
      return flatten(Object(this), depth, []);
    }
  });
}`

	polyfillArrayFlatMap = `if (typeof Array.prototype.flatMap !== "function") {
  Object.defineProperty(Array.prototype, "flatMap", {
    configurable: true,
    writable: true,
    value: function (cb, thisArg) {
      if (typeof cb !== "function") throw new TypeError("flatMap: callback is not a function");
      var o = Object(this), out = [];
      for (var i = 0; i < o.length; i++) {
        if (!(i in o)) continue;
        var v = cb.call(thisArg, o[i], i, o);
        if (Array.isArray(v)) Array.prototype.push.apply(out, v);
        else out.push(v);
      }
      return out;
    }
  });
}`

	polyfillArrayAt = `if (typeof Array.prototype.at !== "function") {
  var at = function (n) {
    n = Math.trunc(n) || 0;
    if (n < 0) n += this.length;
    if (n < 0 || n >= this.length) return undefined;
    return this[n];
  };
  [Array, String].forEach(function (C) {
    Object.defineProperty(C.prototype, "at", {configurable: true, writable: true, value: at});
  });
}`

	polyfillPerformanceObserver = `if (typeof window.PerformanceObserver !== "function") {
  var PO = function (cb) { this._cb = cb; };
  PO.prototype.observe = function () {};
  PO.prototype.disconnect = function () {};
  PO.prototype.takeRecords = function () { return []; };
  PO.supportedEntryTypes = [];
  window.PerformanceObserver = PO;
}`

	polyfillCookieStore = `if (typeof navigator.cookieEnabled !== "boolean") {
  Object.defineProperty(navigator, "cookieEnabled", {
    configurable: true,
    get: function () {
      document.cookie = "__pf=1";
      var ok = document.cookie.indexOf("__pf=") !== -1;
      document.cookie = "__pf=1; expires=Thu, 01 Jan 1970 00:00:00 GMT";
      return ok;
    }
  });
}`
)
