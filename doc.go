// Package gzhmu is an unofficial client for the Guangzhou Medical
// University campus services. It logs in through the SSO server,
// solves the arithmetic captcha on the login form, reaches intranet
// hosts from outside through the Web VPN gateway and drives the
// library seat reservation system.
package gzhmu

// Version is the library version.
const Version = "0.3.0"
