package policy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/martok/palefill/rules"
)

// Fixes applied to every self-hosted GitLab instance.
const (
	gitLabPageFixes   = "std-customElements"
	gitLabScriptFixes = rules.ScriptContentMarker + ",gl-script"
)

// DefaultGitLabInstances are the well-known self-hosted GitLab instances, the
// default value of [PrefGitLabInstances].
var DefaultGitLabInstances = []string{
	"0xacab.org",
	"code.briarproject.org",
	"code.foxkit.us",
	"code.videolan.org",
	"dev.gajim.org",
	"forge.tedomum.net",
	"foss.heptapod.net",
	"framagit.org",
	"git.adelielinux.org",
	"git.alchemyviewer.org",
	"git.callpipe.com",
	"git.cardiff.ac.uk",
	"git.cit.bcit.ca",
	"git.coop",
	"git.drk.sc",
	"git.drupalcode.org",
	"git.empiresmod.com",
	"git.feneas.org",
	"git.fosscommunity.in",
	"git.gnu.io",
	"git.happy-dev.fr",
	"git.immc.ucl.ac.be",
	"git.jami.net",
	"git.ligo.org",
	"git.linux-kernel.at",
	"git.najer.info",
	"git.nzoss.org.nz",
	"git.oeru.org",
	"git.pleroma.social",
	"git.pwmt.org",
	"git.rockylinux.org",
	"git.silence.dev",
	"git.synz.io",
	"gitgud.io",
	"gitlab.com",
	"gitlab.freedesktop.org",
	"gitlab.gnome.org",
	"gitlab.xfce.org",
	"gitlab.xiph.org",
	"gitplac.si",
	"invent.kde.org",
	"lab.libreho.st",
	"mau.dev",
	"mpeg.expert",
	"opencode.net",
	"repo.getmonero.org",
	"salsa.debian.org",
	"skylab.vc.h-brs.de",
	"source.joinmastodon.org",
	"source.puri.sm",
	"source.small-tech.org",
}

// gitLabHost returns the host of an instance given either as a host or as a
// URL.  ok is false if the instance can't be used.
func gitLabHost(instance string) (host string, ok bool) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return "", false
	}

	if strings.Contains(instance, "://") {
		u, err := url.Parse(instance)
		if err != nil {
			return "", false
		}

		instance = u.Host
	}

	host = rules.NormalizeHost(strings.TrimSuffix(instance, "/"))

	return host, host != ""
}

// gitLabDefinitions returns the rule definitions for the GitLab instances.
func gitLabDefinitions(instances []string) (defs []rules.Definition) {
	var pages, scripts []string
	for _, inst := range instances {
		host, ok := gitLabHost(inst)
		if !ok {
			continue
		}

		pages = append(pages, host)
		scripts = append(scripts, fmt.Sprintf("%s/assets/webpack/*.chunk.js$script", host))
	}

	if len(pages) == 0 {
		return nil
	}

	return []rules.Definition{{
		Selectors: pages,
		Fixes:     strings.Split(gitLabPageFixes, ","),
	}, {
		Selectors: scripts,
		Fixes:     strings.Split(gitLabScriptFixes, ","),
	}}
}
