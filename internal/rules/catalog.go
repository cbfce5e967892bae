package rules

import "unifi-report/internal/schema"

// Catalog returns the shipped rule set. Rules are data, not code: the
// registry indexes them at startup and the engine only ever walks the
// index. Registration order is match priority for keys claimed by more
// than one rule, so narrower patterned rules come before their catch-alls.
func Catalog() []Rule {
	return []Rule{
		// --- Security ---
		{
			Name:        "admin-login-failed",
			EventKeys:   []string{"EVT_AD_LoginFailed"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeverityMedium,
			Title:       "Failed controller login for {admin}",
			Description: "A login attempt for administrator account {admin} from {ip} was rejected by the controller.",
			Remediation: "Confirm the attempt was made by the account owner. Repeated failures from one address warrant a firewall block.",
		},
		{
			Name:            "admin-login-remote",
			EventKeys:       []string{"EVT_AD_Login"},
			Category:        schema.CategorySecurity,
			Severity:        schema.SeverityMedium,
			MessageContains: "remote",
			Title:           "Remote controller login by {admin}",
			Description:     "Administrator {admin} logged into the controller from the remote address {ip}.",
			Remediation:     "Verify the administrator expected to sign in from outside the management network.",
		},
		{
			Name:        "admin-login",
			EventKeys:   []string{"EVT_AD_Login"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeverityLow,
			Title:       "Controller login by {admin}",
			Description: "Administrator {admin} logged into the controller from {ip}.",
		},
		{
			Name:        "rogue-ap-detected",
			EventKeys:   []string{"EVT_AP_DetectRogueAP"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeveritySevere,
			Title:       "Rogue access point detected near {device}",
			Description: "Access point {device} detected an unmanaged access point broadcasting {essid} on channel {channel}.",
			Remediation: "Locate the rogue transmitter. If it impersonates your SSID, treat it as an active evil-twin attack and rotate wireless credentials.",
		},
		{
			Name:            "wireless-auth-radius-failed",
			EventKeys:       []string{"EVT_WU_AuthFailed"},
			Category:        schema.CategorySecurity,
			Severity:        schema.SeverityMedium,
			MessageContains: "radius",
			Title:           "RADIUS authentication failure on {ssid}",
			Description:     "Client {client} failed RADIUS authentication on {ssid} via {device}.",
			Remediation:     "Check the RADIUS server logs for the reject reason and confirm the client certificate or credentials are current.",
		},
		{
			Name:        "wireless-auth-failed",
			EventKeys:   []string{"EVT_WU_AuthFailed"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeverityLow,
			Title:       "Wireless authentication failure on {ssid}",
			Description: "Client {client} failed to authenticate to {ssid} via {device}.",
		},
		{
			Name:        "vpn-login-failed",
			EventKeys:   []string{"EVT_GW_VpnLoginFailed"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeverityMedium,
			Title:       "VPN login failure for {client}",
			Description: "A VPN connection attempt for {client} from {ip} failed authentication on {device}.",
			Remediation: "Repeated VPN failures from unfamiliar addresses are a brute-force indicator; review the source and consider geo-blocking.",
		},
		{
			Name:        "vpn-connected",
			EventKeys:   []string{"EVT_GW_VpnConnected"},
			Category:    schema.CategorySecurity,
			Severity:    schema.SeverityLow,
			Title:       "VPN session established for {client}",
			Description: "Remote user {client} established a VPN session from {ip}.",
		},

		// --- Connectivity ---
		{
			Name:        "device-lost-contact",
			EventKeys:   []string{"EVT_AP_Lost_Contact", "EVT_SW_Lost_Contact", "EVT_GW_Lost_Contact"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeveritySevere,
			Title:       "Device {device} is offline",
			Description: "The controller lost contact with {device}. Clients served by this device have no connectivity until it returns.",
			Remediation: "Check power and uplink cabling for {device}. If it is reachable but not adopted, re-adopt it from the controller.",
		},
		{
			Name:        "wan-transition",
			EventKeys:   []string{"EVT_GW_WANTransition"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeveritySevere,
			Title:       "WAN failover on {device}",
			Description: "Gateway {device} switched its active WAN interface to {wan_iface}. The primary uplink is degraded or down.",
			Remediation: "Contact the upstream provider for the failed circuit and confirm failover routing is passing traffic.",
		},
		{
			Name:        "wireless-interference",
			EventKeys:   []string{"EVT_AP_PossibleInterference"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityMedium,
			Title:       "Interference detected by {device}",
			Description: "Access point {device} detected radio interference on channel {channel} and may renegotiate channels.",
			Remediation: "If this repeats on the same channel, pin the AP to a cleaner channel or reduce transmit power on overlapping APs.",
		},
		{
			Name:        "stp-port-blocking",
			EventKeys:   []string{"EVT_SW_StpPortBlocking"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityMedium,
			Title:       "Spanning tree blocked a port on {device}",
			Description: "Switch {device} placed port {port} into the STP blocking state, usually because a loop was detected.",
			Remediation: "Trace the cabling on port {port}; a patch cable looped between two access ports is the usual cause.",
		},
		{
			Name:        "wireless-client-roam",
			EventKeys:   []string{"EVT_WU_Roam", "EVT_WU_RoamRadio"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityLow,
			Title:       "Client {client} roamed",
			Description: "Wireless client {client} roamed to {device} on channel {channel}.",
		},
		{
			Name:        "wireless-client-session",
			EventKeys:   []string{"EVT_WU_Connected", "EVT_WU_Disconnected"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityLow,
			Title:       "Wireless session change for {client}",
			Description: "Wireless client {client} changed connection state on {ssid} via {device}.",
		},
		{
			Name:        "wired-client-session",
			EventKeys:   []string{"EVT_LU_Connected", "EVT_LU_Disconnected"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityLow,
			Title:       "Wired session change for {client}",
			Description: "Wired client {client} changed connection state on {device}.",
		},
		{
			Name:        "guest-session",
			EventKeys:   []string{"EVT_WG_Connected", "EVT_WG_Disconnected"},
			Category:    schema.CategoryConnectivity,
			Severity:    schema.SeverityLow,
			Title:       "Guest session change for {client}",
			Description: "Guest client {client} changed connection state on {ssid}.",
		},

		// --- System ---
		{
			Name:        "device-restarted-unknown",
			EventKeys:   []string{"EVT_AP_RestartedUnknown", "EVT_SW_RestartedUnknown", "EVT_GW_RestartedUnknown"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeveritySevere,
			Title:       "Unexpected restart of {device}",
			Description: "Device {device} restarted without an administrative request. This usually means a power interruption or a firmware crash.",
			Remediation: "Check the power source for {device}. If restarts recur on current firmware, capture a support file before they become a pattern.",
		},
		{
			Name:        "device-restarted",
			EventKeys:   []string{"EVT_AP_Restarted", "EVT_SW_Restarted", "EVT_GW_Restarted"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeverityLow,
			Title:       "Device {device} restarted",
			Description: "Device {device} completed an administrator-requested restart.",
		},
		{
			Name:        "firmware-upgrade-failed",
			EventKeys:   []string{"EVT_AP_UpgradeFailed", "EVT_SW_UpgradeFailed", "EVT_GW_UpgradeFailed"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeveritySevere,
			Title:       "Firmware upgrade failed on {device}",
			Description: "Device {device} failed to upgrade to firmware {version}. It remains on its previous release.",
			Remediation: "Retry the upgrade from the controller. A device that fails repeatedly may have insufficient flash space and need a manual recovery.",
		},
		{
			Name:        "firmware-upgraded",
			EventKeys:   []string{"EVT_AP_Upgraded", "EVT_SW_Upgraded", "EVT_GW_Upgraded"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeverityLow,
			Title:       "Device {device} upgraded",
			Description: "Device {device} upgraded to firmware {version}.",
		},
		{
			Name:        "device-adopted",
			EventKeys:   []string{"EVT_AP_Adopted", "EVT_SW_Adopted", "EVT_GW_Adopted"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeverityMedium,
			Title:       "New device {device} adopted",
			Description: "Device {device} was adopted into the site.",
			Remediation: "Confirm this adoption was performed by an administrator; an unexpected adoption can indicate a compromised controller account.",
		},
		{
			Name:        "device-discovered",
			EventKeys:   []string{"EVT_AP_DiscoveredPending", "EVT_SW_DiscoveredPending"},
			Category:    schema.CategorySystem,
			Severity:    schema.SeverityMedium,
			Title:       "Unadopted device {device} discovered",
			Description: "An unadopted device {device} is broadcasting on the management network.",
			Remediation: "Adopt the device if it is yours, otherwise identify who connected it.",
		},

		// --- Performance ---
		{
			Name:        "poe-overload",
			EventKeys:   []string{"EVT_SW_PoeOverload"},
			Category:    schema.CategoryPerformance,
			Severity:    schema.SeveritySevere,
			Title:       "PoE budget exceeded on {device}",
			Description: "Switch {device} exceeded its PoE power budget; ports may be shedding power to attached devices.",
			Remediation: "Move high-draw devices to another switch or an external supply before ports start cycling.",
		},
		{
			Name:        "radar-detected",
			EventKeys:   []string{"EVT_AP_RadarDetected"},
			Category:    schema.CategoryPerformance,
			Severity:    schema.SeverityMedium,
			Title:       "DFS radar event on {device}",
			Description: "Access point {device} vacated channel {channel} after detecting a radar signature, forcing clients to reassociate.",
			Remediation: "If radar hits recur, move the 5 GHz radio off DFS channels for this AP.",
		},
		{
			Name:        "channel-changed",
			EventKeys:   []string{"EVT_AP_ChannelChanged"},
			Category:    schema.CategoryPerformance,
			Severity:    schema.SeverityLow,
			Title:       "Channel change on {device}",
			Description: "Access point {device} moved to channel {channel}.",
		},
	}
}
