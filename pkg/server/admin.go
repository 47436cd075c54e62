package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cdnbox/pkg/auth"
)

const loginPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Admin Login</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;justify-content:center;padding-top:10vh;background:#111;color:#eee}
form{display:flex;flex-direction:column;gap:.75rem;min-width:260px}
input{padding:.5rem;border-radius:4px;border:1px solid #444;background:#1b1b1b;color:#eee}
button{padding:.5rem;border-radius:4px;border:0;background:#3b82f6;color:#fff;cursor:pointer}
.error{color:#f87171}
</style>
{{if .SiteKey}}<script src="https://challenges.cloudflare.com/turnstile/v0/api.js" async defer></script>{{end}}
</head>
<body>
<form method="post" action="/admin/login">
<h1>Admin Login</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<input type="text" name="username" placeholder="Username" autocomplete="username" required>
<input type="password" name="password" placeholder="Password" autocomplete="current-password" required>
{{if .SiteKey}}<div class="cf-turnstile" data-sitekey="{{.SiteKey}}"></div>{{end}}
<button type="submit">Sign in</button>
</form>
</body>
</html>`

const uploadPage = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Upload</title>
<style>
body{font-family:system-ui,sans-serif;display:flex;justify-content:center;padding-top:10vh;background:#111;color:#eee}
form{display:flex;flex-direction:column;gap:.75rem;min-width:300px}
input,select{padding:.5rem;border-radius:4px;border:1px solid #444;background:#1b1b1b;color:#eee}
button{padding:.5rem;border-radius:4px;border:0;background:#3b82f6;color:#fff;cursor:pointer}
a{color:#9ca3af;font-size:.85rem}
</style>
</head>
<body>
<form method="post" action="/api/upload" enctype="multipart/form-data">
<h1>Upload</h1>
<input type="file" name="file" required>
<select name="destination">
{{range .Folders}}<option value="{{.}}">{{if .}}{{.}}{{else}}(root){{end}}</option>
{{end}}<option value="__new__">New folder&hellip;</option>
</select>
<input type="text" name="new_folder" placeholder="New folder name">
<button type="submit">Upload</button>
<a href="/logout">Log out</a>
</form>
</body>
</html>`

// handleUploadPage renders the upload form for an authenticated
// session. Browsers get a redirect to the login form instead of the
// API's 401 JSON.
func (s *Server) handleUploadPage(c *gin.Context) {
	if !s.gate.IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/admin/login")
		return
	}
	folders, err := s.store.Folders(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.HTML(http.StatusOK, "upload", gin.H{"Folders": folders})
}

// handleLoginPage renders the login form, or redirects an already
// authenticated session to the upload UI.
func (s *Server) handleLoginPage(c *gin.Context) {
	if s.gate.IsAuthenticated(c) {
		c.Redirect(http.StatusFound, "/admin/upload")
		return
	}
	c.HTML(http.StatusOK, "login", gin.H{
		"SiteKey": s.config.Auth.TurnstileSiteKey,
	})
}

// handleLogin checks the bot challenge and credentials. Failures get
// one generic message regardless of cause.
func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	challenge := c.PostForm("cf-turnstile-response")

	if err := s.gate.Login(c, username, password, challenge); err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.internalError(c, err)
			return
		}
		c.HTML(http.StatusUnauthorized, "login", gin.H{
			"Error":   "Invalid credentials",
			"SiteKey": s.config.Auth.TurnstileSiteKey,
		})
		return
	}
	c.Redirect(http.StatusFound, "/admin/upload")
}

// handleLogout destroys the session and returns to the public root.
func (s *Server) handleLogout(c *gin.Context) {
	s.gate.Logout(c)
	c.Redirect(http.StatusFound, "/")
}
