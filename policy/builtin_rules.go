package policy

// BuiltinRules are the rules shipped with the service, in the text format of
// [rules.Store.AddRulesFromString].  Keep the groups sorted by the host name
// without the "www." prefix; CDN hosts sort with the site they serve.
const BuiltinRules = `
www.deepl.com
    std-customElements
! --
www.dhl.de/etc.clientlibs/redesign/clientlibs/clientlibs-head.min.*.js$script
    $script-content,dhl-optchain
! --
github.com
gist.github.com
    std-PerformanceObserver,std-queueMicrotask,gh-temp-oldindex2,gh-compat,sm-gh-extra,sm-cookie
github.com/socket-worker.js$script
gist.github.com/socket-worker.js$script
github.com/assets-cdn/worker/socket-worker-*.js$script
gist.github.com/assets-cdn/worker/socket-worker-*.js$script
    gh-worker-csp
! --
godbolt.org
    std-queueMicrotask
static.ce-cdn.net/vendor.v*.js$script
    $script-content,godbolt-script
! --
www.pixiv.net
    std-customElements
! --
www.redditstatic.com/desktop2x/CommentsPage.*.js$script
    $script-content,reddit-comments-regexp
! --
cdn.sstatic.net/Js/full-anon.en.js?v=*$script
    $script-content,stackexchange-optchain
`
