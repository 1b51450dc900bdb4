package geo

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// delhiCenter anchors wards whose zone is also unknown.
var delhiCenter = Coordinate{Lat: 28.6139, Lon: 77.2090}

// zoneCoordinates maps MCD zone names to a base coordinate. Zone labels in
// the ward data are inconsistent (trailing zone suffixes, duplicated words),
// so common variants are listed explicitly.
var zoneCoordinates = map[string]Coordinate{
	"North Delhi":      {Lat: 28.7041, Lon: 77.1025},
	"North West Delhi": {Lat: 28.7041, Lon: 77.0800},
	"South Delhi":      {Lat: 28.5245, Lon: 77.2066},
	"South":            {Lat: 28.5245, Lon: 77.2066},
	"South Zone":       {Lat: 28.5245, Lon: 77.2066},
	"West Delhi":       {Lat: 28.6517, Lon: 77.0550},
	"West":             {Lat: 28.6517, Lon: 77.0550},
	"East Delhi":       {Lat: 28.6280, Lon: 77.2950},
	"Central Delhi":    {Lat: 28.6328, Lon: 77.2197},
	"Central":          {Lat: 28.6328, Lon: 77.2197},
	"Central Zone":     {Lat: 28.6328, Lon: 77.2197},
	"City S.P.":        {Lat: 28.6562, Lon: 77.2410},
	"Najafgarh":        {Lat: 28.6100, Lon: 76.9800},
	"Rohini":           {Lat: 28.7495, Lon: 77.0565},
	"Shahdara":         {Lat: 28.6731, Lon: 77.2850},
}

// wardCoordinates is the curated table of verified ward centroids, keyed by
// upper-case ward name.
var wardCoordinates = map[string]Coordinate{
	// Central Delhi
	"CONNAUGHT PLACE":  {Lat: 28.6315, Lon: 77.2167},
	"KAROL BAGH":       {Lat: 28.6514, Lon: 77.1907},
	"RAJINDER NAGAR":   {Lat: 28.6425, Lon: 77.1803},
	"PAHAR GANJ":       {Lat: 28.6444, Lon: 77.2125},
	"DEV NAGAR":        {Lat: 28.6520, Lon: 77.1850},
	"EAST PATEL NAGAR": {Lat: 28.6453, Lon: 77.1714},
	"WEST PATEL NAGAR": {Lat: 28.6453, Lon: 77.1650},
	"MOTI NAGAR":       {Lat: 28.6555, Lon: 77.1487},
	"RAMESH NAGAR":     {Lat: 28.6519, Lon: 77.1386},
	"NARAINA":          {Lat: 28.6268, Lon: 77.1378},
	"INDER PURI":       {Lat: 28.6170, Lon: 77.1694},
	"KARAM PURA":       {Lat: 28.6583, Lon: 77.1325},

	// South Delhi
	"GREATER KAILASH":  {Lat: 28.5482, Lon: 77.2400},
	"HAUZ KHAS":        {Lat: 28.5494, Lon: 77.2001},
	"GREEN PARK":       {Lat: 28.5605, Lon: 77.2068},
	"MALVIYA NAGAR":    {Lat: 28.5323, Lon: 77.2120},
	"SAKET":            {Lat: 28.5245, Lon: 77.2066},
	"MEHRAULI":         {Lat: 28.5181, Lon: 77.1794},
	"CHHATARPUR":       {Lat: 28.5078, Lon: 77.1740},
	"VASANT KUNJ":      {Lat: 28.5197, Lon: 77.1573},
	"VASANT VIHAR":     {Lat: 28.5621, Lon: 77.1589},
	"MUNIRKA":          {Lat: 28.5580, Lon: 77.1727},
	"R.K. PURAM":       {Lat: 28.5694, Lon: 77.1879},
	"KHANPUR":          {Lat: 28.5089, Lon: 77.2453},
	"SANGAM VIHAR":     {Lat: 28.5010, Lon: 77.2472},
	"TIGRI":            {Lat: 28.5109, Lon: 77.2503},
	"LADO SARAI":       {Lat: 28.5241, Lon: 77.1876},
	"CHIRAG DELHI":     {Lat: 28.5408, Lon: 77.2256},
	"CHITARANJAN PARK": {Lat: 28.5398, Lon: 77.2494},
	"PUSHP VIHAR":      {Lat: 28.5211, Lon: 77.2287},

	// North Delhi
	"ROHINI":          {Lat: 28.7495, Lon: 77.0565},
	"PITAM PURA":      {Lat: 28.7055, Lon: 77.1287},
	"SHALIMAR BAGH":   {Lat: 28.7185, Lon: 77.1570},
	"MODEL TOWN":      {Lat: 28.7178, Lon: 77.1891},
	"AZADPUR":         {Lat: 28.7052, Lon: 77.1802},
	"ADARSH NAGAR":    {Lat: 28.7135, Lon: 77.1712},
	"ASHOK VIHAR":     {Lat: 28.6935, Lon: 77.1775},
	"NARELA":          {Lat: 28.8528, Lon: 77.0926},
	"ALIPUR":          {Lat: 28.7965, Lon: 77.1353},
	"BURARI":          {Lat: 28.7614, Lon: 77.1919},
	"BAWANA":          {Lat: 28.8000, Lon: 77.0500},
	"MUKHERJEE NAGAR": {Lat: 28.7007, Lon: 77.2107},
	"KAMLA NAGAR":     {Lat: 28.6806, Lon: 77.2107},
	"TIMARPUR":        {Lat: 28.6950, Lon: 77.2200},
	"MALKA GANJ":      {Lat: 28.6850, Lon: 77.2050},
	"JAHANGIR PURI":   {Lat: 28.7300, Lon: 77.1700},
	"BHALSWA":         {Lat: 28.7400, Lon: 77.1650},
	"MUKUNDPUR":       {Lat: 28.7250, Lon: 77.1550},

	// West Delhi
	"DWARKA":          {Lat: 28.5921, Lon: 77.0460},
	"JANAKPURI":       {Lat: 28.6245, Lon: 77.0827},
	"NILOTHI":         {Lat: 28.6950, Lon: 77.0350},
	"MADHU VIHAR":     {Lat: 28.5950, Lon: 77.0350},
	"RAJ NAGAR":       {Lat: 28.6050, Lon: 77.0550},
	"MAHAVIR ENCLAVE": {Lat: 28.5780, Lon: 77.0480},
	"BAPROLA":         {Lat: 28.6000, Lon: 77.0180},

	// Najafgarh and rural fringe
	"ISAPUR":           {Lat: 28.6200, Lon: 76.9700},
	"ROSHAN PURA":      {Lat: 28.6250, Lon: 76.9800},
	"CHHAWALA":         {Lat: 28.5950, Lon: 76.9600},
	"NANGLI SAKRAWATI": {Lat: 28.5850, Lon: 76.9700},
	"KANJHAWALA":       {Lat: 28.7500, Lon: 77.0000},
	"POOTH KALAN":      {Lat: 28.7700, Lon: 77.0400},
	"POOTH KHURD":      {Lat: 28.7600, Lon: 77.0300},
	"BEGUMPUR":         {Lat: 28.8200, Lon: 77.0800},
	"HOLAMBI KALAN":    {Lat: 28.8300, Lon: 77.0600},
	"BAKHTAWARPUR":     {Lat: 28.7800, Lon: 77.1200},
}
