// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package openstack

type authName struct {
	Name string `json:"name"`
}

type passwordUser struct {
	Name     string   `json:"name"`
	Domain   authName `json:"domain"`
	Password string   `json:"password"`
}

type passwordAuthRequest struct {
	Auth struct {
		Identity struct {
			Methods  []string `json:"methods"`
			Password struct {
				User passwordUser `json:"user"`
			} `json:"password"`
		} `json:"identity"`
		Scope struct {
			Project struct {
				Name   string   `json:"name"`
				Domain authName `json:"domain"`
			} `json:"project"`
		} `json:"scope"`
	} `json:"auth"`
}

// imagePage is one page of the image listing
type imagePage struct {
	Images []map[string]any `json:"images"`
	// Next is relative to the image endpoint root
	Next string `json:"next,omitempty"`
}

type memberList struct {
	Members []map[string]any `json:"members"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// serverPage is one page of the server listing
type serverPage struct {
	Servers []map[string]any `json:"servers"`
	Links   []link           `json:"servers_links,omitempty"`
}

type serverEnvelope struct {
	Server map[string]any `json:"server"`
}

type dnsLinks struct {
	Next string `json:"next,omitempty"`
}

type zonePage struct {
	Zones []map[string]any `json:"zones"`
	Links dnsLinks         `json:"links"`
}

type recordSetPage struct {
	RecordSets []map[string]any `json:"recordsets"`
	Links      dnsLinks         `json:"links"`
}
