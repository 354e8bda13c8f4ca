package roomid

var moods = []string{
	"cozy", "quiet", "sunny", "misty", "lazy", "brisk", "mellow", "velvet", "amber", "hazy",
	"lucky", "gentle", "witty", "sleepy", "bold", "breezy", "dusky", "frosty", "golden", "nimble",
	"plush", "rosy", "snug", "tidy", "vivid", "wild", "zesty", "calm", "glossy", "merry",
}

var screens = []string{
	"cinema", "matinee", "premiere", "reel", "sequel", "trailer", "encore", "montage", "cameo", "finale",
	"balcony", "curtain", "marquee", "projector", "popcorn", "ticket", "studio", "spotlight", "backlot", "drivein",
	"intermission", "screen", "credits", "cutscene", "flashback", "closeup", "soundtrack", "overture", "preview", "rerun",
}

var critters = []string{
	"otter", "lynx", "heron", "gecko", "badger", "walrus", "marmot", "ibis", "bison", "koi",
	"puffin", "lemur", "tapir", "wombat", "osprey", "newt", "quokka", "alpaca", "okapi", "sloth",
	"beetle", "cricket", "moth", "finch", "wren", "stoat", "vole", "egret", "oriole", "hare",
}

var snacks = []string{
	"nacho", "pretzel", "truffle", "brownie", "scone", "mochi", "churro", "bagel", "crepe", "fudge",
	"cookie", "tart", "gelato", "praline", "macaron", "eclair", "strudel", "baklava", "cannoli", "donut",
	"licorice", "caramel", "nougat", "toffee", "sorbet", "crumble", "pudding", "waffle", "muffin", "biscotti",
}

var places = []string{
	"harbor", "meadow", "canyon", "lagoon", "orchard", "summit", "grove", "tundra", "delta", "fjord",
	"prairie", "atoll", "dune", "glacier", "valley", "marsh", "plateau", "cove", "ridge", "bayou",
	"oasis", "savanna", "steppe", "estuary", "mesa", "reef", "moor", "glen", "isle", "basin",
}

var skies = []string{
	"comet", "nebula", "quasar", "aurora", "eclipse", "meteor", "zenith", "orbit", "pulsar", "galaxy",
	"equinox", "solstice", "twilight", "nova", "cosmos", "halo", "crescent", "stardust", "sunbeam", "moonbeam",
	"horizon", "rainbow", "thunder", "drizzle", "monsoon", "zephyr", "cirrus", "nimbus", "tempest", "breeze",
}

var wordLists = [][]string{moods, screens, critters, snacks, places, skies}
