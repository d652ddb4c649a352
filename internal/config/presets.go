package config

func preset(edit func(c *Config)) *Config {
	c := DefaultConfig()
	edit(c)
	return c
}

var Presets = map[string]map[string]*Config{
	"trace": {
		"quick": preset(func(c *Config) {
			c.Trace.Niter, c.Trace.Nstep = 32, 8
			c.Trace.RTol, c.Trace.ATol = 1e-8, 1e-8
		}),
		"accurate": preset(func(c *Config) {
			c.Trace.Niter, c.Trace.Nstep = 512, 64
			c.Trace.RTol, c.Trace.ATol = 1e-12, 1e-12
		}),
		"interpolated": preset(func(c *Config) {
			c.Trace.Mode = "interpolate"
			c.Grid.NS, c.Grid.NTheta, c.Grid.NZeta = 129, 128, 32
		}),
		"arclength": preset(func(c *Config) {
			c.Trace.Parametrization = "length"
			c.Trace.OneLength = 4
		}),
	},
	"cross": {
		"symmetric": preset(func(c *Config) {
			c.Start = []StartPoint{{S: 0.3}, {S: 0.6}, {S: 0.9}}
		}),
		"full": preset(func(c *Config) {
			c.Fit.Full = true
			c.Fit.Mpol = 12
		}),
		"noisy": preset(func(c *Config) {
			c.Fit.Orderer = "angular"
			c.Fit.MaxZScore = 2.5
		}),
	},
	"bifurcation": {
		"coarse": preset(func(c *Config) {
			c.Bifurcation.Niter = 6
		}),
		"fine": preset(func(c *Config) {
			c.Bifurcation.Niter, c.Bifurcation.IterLine, c.Bifurcation.Nstep = 20, 12, 8
			c.Bifurcation.RTol, c.Bifurcation.ATol = 1e-11, 1e-11
		}),
	},
	"axis": {
		"low": preset(func(c *Config) {
			c.Start = []StartPoint{{S: c.Model.SMin}}
			c.Fit.Ntor = 2
		}),
		"high": preset(func(c *Config) {
			c.Start = []StartPoint{{S: c.Model.SMin}}
			c.Fit.Ntor = 8
			c.Trace.Niter = 16
		}),
	},
}

func GetPreset(group, name string) *Config {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	cfg, ok := groupPresets[name]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(group string) []string {
	groupPresets, ok := Presets[group]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(groupPresets))
	for name := range groupPresets {
		names = append(names, name)
	}
	return names
}
