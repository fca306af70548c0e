package banner

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

func Print() {
	ptermLogo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("Fleet", pterm.NewRGB(53, 138, 255)),
		putils.LettersFromStringWithRGB("Lens", pterm.NewRGB(0, 0, 0))).
		Srender()

	pterm.DefaultCenter.Print(ptermLogo)

	pterm.DefaultCenter.Print(
		pterm.DefaultHeader.
			WithFullWidth().
			WithBackgroundStyle(pterm.NewStyle(pterm.BgLightBlue)).
			WithMargin(5).
			Sprint(pterm.White("🔍 FleetLens - Fleet Log Analysis & Issue Detection")),
	)

	pterm.Info.Println(
		"Scans uploaded fleet logs, parses text and event-log formats," +
			"\nand surfaces recurring issues with root causes and fixes." +
			"\nVersion 0.0.1.",
	)
}
