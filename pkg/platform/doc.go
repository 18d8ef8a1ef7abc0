/*
Package platform adapts cloud providers to the autoscaler's capacity model.

Every adapter implements Platform (name, restart). On top of that an
adapter implements exactly one of two capability interfaces, chosen by how
the provider models capacity:

  - Resizer: formation-based providers (Heroku). The app always exists and
    capacity is a {type, size, quantity} triple per process type, read with
    State and written with SetState.
  - Lifecycler: existence-based providers (DigitalOcean App Platform). A
    planned quantity of zero deletes the app, any other quantity creates it
    from the stored app_spec when it is absent.

The reconciler type-asserts once per app and never branches on provider
names:

	p, err := factory(app)
	if err != nil {
		return err
	}
	if lc, ok := p.(platform.Lifecycler); ok {
		...
	} else if rs, ok := p.(platform.Resizer); ok {
		...
	}

# Providers

Heroku uses heroku-go:

	GET    /apps/{app}/formation     current formation of the target process type
	PATCH  /apps/{app}/formation     {"updates":[{"type","quantity","size"}]}
	DELETE /apps/{app}/dynos         restart all dynos

DigitalOcean uses godo. Apps are matched by spec name. Restart updates the
app with its live spec, which rolls out a new deployment, and is refused with
ErrDeploymentInProgress while another deployment is building or deploying.
*/
package platform
